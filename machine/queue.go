// Package machine implements the motion queue and machine model: the
// bounded segment buffer shared between the line that accepts G-code
// moves and the line that executes them, plus the machine's coordinate
// systems, units, and homing routines. It corresponds to MachineModel.h
// and MachineModel.cpp in the original firmware.
package machine

import (
	"sync/atomic"

	"github.com/pleasantmill/millctl/dda"
)

// QueueSize is the number of planned segments the ring buffer holds,
// matching the original firmware's BUFFER_SIZE.
const QueueSize = 4

// Queue is a single-producer/single-consumer bounded ring buffer of
// planned segments. The producer (the G-code executor) calls Push; the
// consumer (the segment runner) calls Pop. Head and tail are plain
// indices mod QueueSize, synchronized with atomic load/store the way
// the spec's design notes recommend release/acquire semantics on the
// index words in place of the original's shared-memory volatile byte
// indices guarded by disabling interrupts.
type Queue struct {
	buf  [QueueSize]*dda.Segment
	head atomic.Uint32 // next slot to push into
	tail atomic.Uint32 // next slot to pop from
}

// Empty reports whether the queue holds no segments, mirroring qEmpty.
func (q *Queue) Empty() bool {
	return q.head.Load() == q.tail.Load()
}

// Full reports whether the queue cannot accept another segment,
// mirroring qFull.
func (q *Queue) Full() bool {
	return q.next(q.head.Load()) == q.tail.Load()
}

func (q *Queue) next(i uint32) uint32 {
	return (i + 1) % QueueSize
}

// Push enqueues seg, the Go equivalent of qMove. It reports false if
// the queue was full; callers (QMove) are expected to have already
// waited for room.
func (q *Queue) Push(seg *dda.Segment) bool {
	head := q.head.Load()
	if q.next(head) == q.tail.Load() {
		return false
	}
	q.buf[head] = seg
	q.head.Store(q.next(head))
	return true
}

// Pop dequeues the next segment, the equivalent of dQMove. It reports
// false if the queue was empty.
func (q *Queue) Pop() (*dda.Segment, bool) {
	tail := q.tail.Load()
	if tail == q.head.Load() {
		return nil, false
	}
	seg := q.buf[tail]
	q.buf[tail] = nil
	q.tail.Store(q.next(tail))
	return seg, true
}

// Clear empties the queue without running the pending segments,
// mirroring cancelAndClearQueue.
func (q *Queue) Clear() {
	for {
		if _, ok := q.Pop(); !ok {
			return
		}
	}
}
