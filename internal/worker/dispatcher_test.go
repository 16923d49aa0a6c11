package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chanSource struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (s *chanSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *chanSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.Offset)
	return nil
}

func (s *chanSource) lastCommit() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.committed) == 0 {
		return -1
	}
	return s.committed[len(s.committed)-1]
}

func (s *chanSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type recordingDLQ struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (d *recordingDLQ) Publish(_ context.Context, key, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("broker unavailable")
	}
	d.keys = append(d.keys, string(key))
	return nil
}

func (d *recordingDLQ) published() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.keys...)
}

type handlerFunc func(ctx context.Context, value []byte) error

func (f handlerFunc) Handle(ctx context.Context, value []byte) error { return f(ctx, value) }

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// counted wraps h and reports how many messages it has seen.
func counted(h handlerFunc) (handlerFunc, func() int) {
	c := &counter{}
	return func(ctx context.Context, value []byte) error {
		c.mu.Lock()
		c.n++
		c.mu.Unlock()
		return h(ctx, value)
	}, c.seen
}

func failOn(bad string) handlerFunc {
	return func(_ context.Context, value []byte) error {
		if string(value) == bad {
			return errors.New("boom")
		}
		return nil
	}
}

func runDispatcher(t *testing.T, d *Dispatcher) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("dispatcher did not stop")
			return nil
		}
	}
}

func TestDispatcherCommitsAndDeadLetters(t *testing.T) {
	src := &chanSource{msgs: make(chan kafka.Message, 3)}
	dlq := &recordingDLQ{}
	src.msgs <- kafka.Message{Offset: 1, Key: []byte("a"), Value: []byte("ok")}
	src.msgs <- kafka.Message{Offset: 2, Key: []byte("b"), Value: []byte("bad")}
	src.msgs <- kafka.Message{Offset: 3, Key: []byte("c"), Value: []byte("ok")}

	stop := runDispatcher(t, NewDispatcher(zap.NewNop(), failOn("bad"), src, dlq, 2))

	require.Eventually(t, func() bool { return src.lastCommit() == 3 }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, stop(), context.Canceled)

	assert.IsIncreasing(t, src.commits())
	assert.Equal(t, []string{"b"}, dlq.published())
}

func TestDispatcherHoldsOffsetWhenDLQFails(t *testing.T) {
	src := &chanSource{msgs: make(chan kafka.Message, 3)}
	dlq := &recordingDLQ{fail: true}
	src.msgs <- kafka.Message{Offset: 5, Value: []byte("bad")}
	src.msgs <- kafka.Message{Offset: 6, Value: []byte("ok")}
	src.msgs <- kafka.Message{Offset: 7, Value: []byte("ok")}

	h, seen := counted(failOn("bad"))
	stop := runDispatcher(t, NewDispatcher(zap.NewNop(), h, src, dlq, 2))

	require.Eventually(t, func() bool { return seen() == 3 }, time.Second, 10*time.Millisecond)
	_ = stop()
	assert.Empty(t, src.commits(), "later offsets must not commit past the unparked message")
}

func TestDispatcherCommitsPartitionsIndependently(t *testing.T) {
	src := &chanSource{msgs: make(chan kafka.Message, 4)}
	dlq := &recordingDLQ{fail: true}
	src.msgs <- kafka.Message{Partition: 0, Offset: 1, Value: []byte("bad")}
	src.msgs <- kafka.Message{Partition: 1, Offset: 1, Value: []byte("ok")}
	src.msgs <- kafka.Message{Partition: 0, Offset: 2, Value: []byte("ok")}
	src.msgs <- kafka.Message{Partition: 1, Offset: 2, Value: []byte("ok")}

	h, seen := counted(failOn("bad"))
	stop := runDispatcher(t, NewDispatcher(zap.NewNop(), h, src, dlq, 1))

	require.Eventually(t, func() bool { return seen() == 4 }, time.Second, 10*time.Millisecond)
	_ = stop()
	assert.Equal(t, []int64{1, 2}, src.commits(), "only partition 1 advances")
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	const n = 8
	src := &chanSource{msgs: make(chan kafka.Message, n)}
	for i := 0; i < n; i++ {
		src.msgs <- kafka.Message{Offset: int64(i), Value: []byte("ok")}
	}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	h := handlerFunc(func(context.Context, []byte) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})

	stop := runDispatcher(t, NewDispatcher(zap.NewNop(), h, src, &recordingDLQ{}, 3))
	require.Eventually(t, func() bool { return src.lastCommit() == n-1 }, 2*time.Second, 10*time.Millisecond)
	_ = stop()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 3)
	assert.Greater(t, peak, 1)
}
