// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"context"
	"errors"
	"sync"
)

// errDrained is returned by next once every announced segment was consumed
// and the producer has finished.
var errDrained = errors.New("hls: queue drained")

// result is a completed segment slot: either decoded bytes or the reason the
// segment was dropped.
type result struct {
	sequence int64
	fetched  *Fetched
	err      error
}

// orderedQueue hands completed segments to the writer in announcement order.
// The reloader announces each sequence before handing it to a worker; any
// sequence never announced (fall-behind, gap) is skipped by construction.
// At most size completed slots are held; workers depositing anything but the
// head block until the writer makes room.
type orderedQueue struct {
	mu      sync.Mutex
	changed chan struct{}
	order   []int64
	slots   map[int64]result
	size    int
	done    bool
	cause   error
}

func newOrderedQueue(size int) *orderedQueue {
	if size < 1 {
		size = 1
	}
	return &orderedQueue{
		changed: make(chan struct{}),
		slots:   make(map[int64]result, size),
		size:    size,
	}
}

// broadcastLocked wakes every waiter. Caller must hold mu.
func (q *orderedQueue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// announce registers seq as the next sequence the writer must emit.
func (q *orderedQueue) announce(seq int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.order); n > 0 && q.order[n-1] >= seq {
		return
	}
	q.order = append(q.order, seq)
}

// finish marks the end of announcements. A non-nil cause is returned by the
// writer after it drained everything announced.
func (q *orderedQueue) finish(cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return
	}
	q.done = true
	q.cause = cause
	q.broadcastLocked()
}

// deposit stores a completed slot, blocking while the queue is full unless r
// is the head the writer is waiting for.
func (q *orderedQueue) deposit(ctx context.Context, r result) error {
	for {
		q.mu.Lock()
		if !q.announcedLocked(r.sequence) {
			q.mu.Unlock()
			return nil
		}
		if len(q.slots) < q.size || q.order[0] == r.sequence {
			q.slots[r.sequence] = r
			q.broadcastLocked()
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *orderedQueue) announcedLocked(seq int64) bool {
	for _, s := range q.order {
		if s == seq {
			return true
		}
	}
	return false
}

// next blocks until the head slot is complete. It returns errDrained when the
// producer finished and nothing is left.
func (q *orderedQueue) next(ctx context.Context) (result, error) {
	for {
		q.mu.Lock()
		if r, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return r, nil
		}
		if q.done && len(q.order) == 0 {
			q.mu.Unlock()
			return result{}, errDrained
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return result{}, ctx.Err()
		}
	}
}

// tryNext pops the head slot if it is already complete.
func (q *orderedQueue) tryNext() (result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *orderedQueue) popLocked() (result, bool) {
	if len(q.order) == 0 {
		return result{}, false
	}
	head := q.order[0]
	r, ok := q.slots[head]
	if !ok {
		return result{}, false
	}
	delete(q.slots, head)
	q.order = q.order[1:]
	q.broadcastLocked()
	return r, true
}

// Cause returns the error the producer finished with.
func (q *orderedQueue) Cause() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cause
}
