// Package scheduler implements the priority-queue event scheduler of
// spec.md §4.1: a min-heap keyed by simulated time, tie-broken by
// insertion sequence, with identity-based update/cancel so a car that
// reschedules its own next wakeup doesn't pile up duplicate entries.
// Grounded on utils/container.PriorityQueue's handle-tracking
// extension (heap.Interface over a slice of *item[T]).
package scheduler

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/utils/container"
)

// entry pairs a Command with the real time it is scheduled at. The
// priority queue's sort key (its Priority field) is also the time;
// entry exists so Pop can hand back the exact scheduled time without
// having to reconstruct it from the sort key, which stays an exact
// float64 this way (no tie-break encoding folded into it).
type entry struct {
	Cmd  Command
	Time float64
}

// Scheduler orders Commands by (time, insertion sequence). Two
// entries at identical simulated time are popped in the order they
// were pushed (container.PriorityQueue breaks float64 ties by
// handle), giving the determinism spec.md §4.1 requires: identical
// inputs produce identical event orderings run to run.
type Scheduler struct {
	queue *container.PriorityQueue[entry]
	now   float64
	byKey map[CommandKey]int64 // CommandKey -> handle into queue
}

// New creates an empty Scheduler parked at startTime.
func New(startTime float64) *Scheduler {
	return &Scheduler{
		queue: container.NewPriorityQueue[entry](),
		now:   startTime,
		byKey: make(map[CommandKey]int64),
	}
}

// Now returns the time of the last popped command (or the scheduler's
// start time, if nothing has been popped yet).
func (s *Scheduler) Now() float64 { return s.now }

// Len reports how many commands are pending.
func (s *Scheduler) Len() int { return s.queue.Len() }

// Push enqueues cmd at time. time must be >= Now(); violating this is
// a bug in the caller (a command scheduled in the past), so Push
// panics rather than silently clamping it, per spec.md §7's treatment
// of invariant violations as fatal.
func (s *Scheduler) Push(time float64, cmd Command) {
	if time < s.now {
		panic(fmt.Sprintf("scheduler: Push(%v, %s) is before now=%v", time, cmd, s.now))
	}
	key := cmd.Key()
	if oldHandle, ok := s.byKey[key]; ok {
		// A command with this identity is already pending; spec.md
		// §4.1's update() semantics subsume a duplicate Push the same
		// way -- move it, don't double-queue it.
		s.queue.HandleRemove(oldHandle)
	}
	handle := s.queue.HandlePush(entry{Cmd: cmd, Time: time}, time)
	s.byKey[key] = handle
}

// Update moves the pending command logically equivalent to cmd (per
// cmd.Key()) to newTime, or pushes it fresh if nothing equivalent is
// pending.
func (s *Scheduler) Update(newTime float64, cmd Command) {
	key := cmd.Key()
	handle, ok := s.byKey[key]
	if !ok {
		s.Push(newTime, cmd)
		return
	}
	if newTime < s.now {
		panic(fmt.Sprintf("scheduler: Update(%v, %s) is before now=%v", newTime, cmd, s.now))
	}
	// Re-store cmd itself (not just its time): a caller may Update
	// with a command carrying refreshed payload fields while keeping
	// the same logical identity. Remove and re-push rather than
	// HandleUpdate in place so the tie-break handle reflects this
	// Update's position in the insertion sequence.
	s.queue.HandleRemove(handle)
	newHandle := s.queue.HandlePush(entry{Cmd: cmd, Time: newTime}, newTime)
	s.byKey[key] = newHandle
}

// Cancel removes the pending command equivalent to cmd, if any. It is
// a no-op if nothing matching is pending.
func (s *Scheduler) Cancel(cmd Command) {
	key := cmd.Key()
	handle, ok := s.byKey[key]
	if !ok {
		return
	}
	s.queue.HandleRemove(handle)
	delete(s.byKey, key)
}

// Pending reports whether a command equivalent to cmd is currently
// scheduled.
func (s *Scheduler) Pending(cmd Command) bool {
	_, ok := s.byKey[cmd.Key()]
	return ok
}

// Pop removes and returns the earliest pending command, advancing Now
// to its scheduled time. ok is false if the scheduler is empty.
func (s *Scheduler) Pop() (cmd Command, time float64, ok bool) {
	if s.queue.Len() == 0 {
		return nil, 0, false
	}
	value, _, _ := s.queue.HandleHeapPop()
	delete(s.byKey, value.Cmd.Key())
	s.now = value.Time
	return value.Cmd, value.Time, true
}
