package sim

import (
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
)

// CheckInvariants verifies the quantified properties of spec.md §8
// that aren't already enforced structurally by the types involved
// (time monotonicity is enforced by clock.Clock.Advance itself, for
// instance). Intended to be wired behind a scheduler.Callback in
// tests and debug runs, not on the hot path of every UpdateCar.
func (s *Sim) CheckInvariants() {
	now := s.Now()
	seen := make(map[string]bool, len(s.cars))

	for t, q := range s.queues {
		s.checkQueueOrdering(t, q, now)
		s.checkQueueMembership(q, seen)
	}
	for id := range s.cars {
		if !seen[id.String()] {
			s.panicf("car %s is not in any queue", id)
		}
	}
	s.checkIntersectionConflictFreedom()
}

// checkQueueOrdering is I1/I2: every member's front position must
// leave at least FollowingDistance of clearance behind the member
// ahead of it.
func (s *Sim) checkQueueOrdering(t mapapi.Traversable, q *queue.Queue, now float64) {
	positions := q.Positions(now)
	members := q.Members()
	for i := 1; i < len(members); i++ {
		ahead, behind := members[i-1], members[i]
		gap := positions[ahead.ID()] - ahead.Length() - q.FollowingDistance - positions[behind.ID()]
		if gap < -1e-6 {
			s.panicf("queue %s: member %v at %.3f violates following distance behind %v at %.3f (gap=%.4f)",
				t, behind.ID(), positions[behind.ID()], ahead.ID(), positions[ahead.ID()], gap)
		}
	}
}

func (s *Sim) checkQueueMembership(q *queue.Queue, seen map[string]bool) {
	for _, m := range q.Members() {
		if m.ID().Kind == queue.MemberCar {
			seen[m.ID().Car.String()] = true
		}
	}
}

// checkIntersectionConflictFreedom checks nothing: accepted turns are
// not cross-checked for conflicts here, so CheckInvariants relies on
// the arbiter's own admission logic for that property.
func (s *Sim) checkIntersectionConflictFreedom() {
	// intersection.Arbiter does not expose its accepted set; callers
	// only see MaybeStartTurn/FinishTurn.
}
