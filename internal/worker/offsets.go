package worker

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

const (
	pending = iota
	handled
	failed
)

type partitionState struct {
	order  []int64
	status map[int64]int
	msgs   map[int64]kafka.Message
}

// offsetTracker commits each partition in fetch order. A committed offset is
// never past a message that is still in flight or could not be parked, so
// that message is redelivered after a restart.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionState
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: map[int]*partitionState{}}
}

func (t *offsetTracker) track(m kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.partitions[m.Partition]
	if !ok {
		p = &partitionState{status: map[int64]int{}, msgs: map[int64]kafka.Message{}}
		t.partitions[m.Partition] = p
	}
	p.order = append(p.order, m.Offset)
	p.status[m.Offset] = pending
	p.msgs[m.Offset] = m
}

// done records the outcome for m and calls commit with the newest message of
// the contiguous handled prefix, if that prefix grew. commit runs under the
// tracker lock so commits for a partition never go backwards.
func (t *offsetTracker) done(m kafka.Message, ok bool, commit func(kafka.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partitions[m.Partition]
	if p == nil {
		return
	}
	if ok {
		p.status[m.Offset] = handled
	} else {
		p.status[m.Offset] = failed
	}

	var last *kafka.Message
	for len(p.order) > 0 && p.status[p.order[0]] == handled {
		off := p.order[0]
		msg := p.msgs[off]
		last = &msg
		delete(p.status, off)
		delete(p.msgs, off)
		p.order = p.order[1:]
	}
	if last != nil {
		commit(*last)
	}
}
