package worker

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource is satisfied by kafkax.Consumer.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// DeadLetter is satisfied by kafkax.Producer.
type DeadLetter interface {
	Publish(ctx context.Context, key, value []byte) error
}

type Handler interface {
	Handle(ctx context.Context, value []byte) error
}

type Dispatcher struct {
	log        *zap.Logger
	handler    Handler
	c          MessageSource
	dlq        DeadLetter
	maxWorkers int
	offsets    *offsetTracker
}

func NewDispatcher(log *zap.Logger, handler Handler, c MessageSource, dlq DeadLetter, maxWorkers int) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Dispatcher{
		log:        log,
		handler:    handler,
		c:          c,
		dlq:        dlq,
		maxWorkers: maxWorkers,
		offsets:    newOffsetTracker(),
	}
}

// Run consumes until ctx is cancelled, then waits for in-flight handlers.
func (d *Dispatcher) Run(ctx context.Context) error {
	sem := make(chan struct{}, d.maxWorkers)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		m, err := d.c.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Error("failed to read message", zap.Error(err))
			continue
		}

		d.offsets.track(m)

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		wg.Add(1)
		go func(m kafka.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			d.process(ctx, m)
		}(m)
	}
}

func (d *Dispatcher) process(ctx context.Context, m kafka.Message) {
	ok := true
	if err := d.handler.Handle(ctx, m.Value); err != nil {
		d.log.Error("failed to handle message", zap.Error(err), zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition))
		// Park it for manual inspection; the offset only moves once the DLQ has it.
		if err := d.dlq.Publish(ctx, m.Key, m.Value); err != nil {
			d.log.Error("failed to publish to dlq, partition stalled until restart",
				zap.Error(err), zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition))
			ok = false
		}
	}
	d.offsets.done(m, ok, func(last kafka.Message) {
		if err := d.c.Commit(ctx, last); err != nil {
			d.log.Error("failed to commit message", zap.Error(err), zap.Int64("offset", last.Offset))
		}
	})
}
