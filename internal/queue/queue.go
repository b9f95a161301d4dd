// Package queue implements the bounded work queue (spec C4): a fixed-
// capacity FIFO between ingestion producers and a single consumer.
//
// The hand-rolled semaphore+mutex ring buffer spec.md describes becomes a
// bounded Go channel (spec §REDESIGN FLAGS: "the hand-rolled semaphore+mutex
// ring buffer becomes a bounded channel with send/receive"), grounded on the
// channel/errgroup fan-out in
// _examples/intelligencedev-manifold/internal/agent/warpp.go. The shutdown
// sentinel stays an explicit item on the wire rather than a channel close,
// since multiple producers share one queue and only the coordinator, not a
// producer, is allowed to signal consumer shutdown.
package queue

import (
	"context"
	"time"
)

// Item is one unit of ingestion work: a resolved (hour-index, mesh-index,
// value) triple destined for a single C5 write_cell call (spec §4.2).
type Item struct {
	T int64 // hour-index
	M int   // dense mesh-index
	V int32 // population value
}

// message wraps an Item with the sentinel flag below; Go has no nil for a
// value type, so shutdown is carried out-of-band on the wrapper struct
// rather than as a literal null item.
type message struct {
	item     Item
	sentinel bool
}

// Queue is a bounded FIFO of Items shared by many producers and one
// consumer. Enqueue blocks when full; Dequeue blocks when empty (spec
// §4.3: "enqueue blocks when full; dequeue blocks when empty").
type Queue struct {
	ch chan message
}

// New returns a Queue with the given capacity (spec default: 1024 slots).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan message, capacity)}
}

// Enqueue blocks until the item is accepted or ctx is done. Cancellation
// here is best-effort: the spec's cooperative shutdown protocol is the
// documented way to stop the pipeline, not ctx cancellation (spec §4.4:
// "cancellation-safe only at the granularity of enqueuing a shutdown
// sentinel"), but ctx is still honored so a producer never leaks forever
// on an open queue that nobody is draining.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	select {
	case q.ch <- message{item: item}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown enqueues the sentinel that tells the consumer no more items are
// coming (spec §4.4: "the coordinator sets a should_stop flag and enqueues
// a null sentinel"). Only the coordinator calls this, once all producers
// have joined.
func (q *Queue) Shutdown(ctx context.Context) error {
	select {
	case q.ch <- message{sentinel: true}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until an item is available, the sentinel arrives (ok=false),
// or ctx is done (err != nil).
func (q *Queue) Dequeue(ctx context.Context) (item Item, ok bool, err error) {
	select {
	case m := <-q.ch:
		if m.sentinel {
			return Item{}, false, nil
		}
		return m.item, true, nil
	case <-ctx.Done():
		return Item{}, false, ctx.Err()
	}
}

// ErrTimeout is returned by DequeueTimeout when no item or sentinel arrives
// within the given duration.
var ErrTimeout = context.DeadlineExceeded

// DequeueTimeout is the non-blocking dequeue_with_timeout variant spec §4.3
// mentions as exposed but not required by the pipeline.
func (q *Queue) DequeueTimeout(ctx context.Context, d time.Duration) (item Item, ok bool, err error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m := <-q.ch:
		if m.sentinel {
			return Item{}, false, nil
		}
		return m.item, true, nil
	case <-timer.C:
		return Item{}, false, ErrTimeout
	case <-ctx.Done():
		return Item{}, false, ctx.Err()
	}
}
