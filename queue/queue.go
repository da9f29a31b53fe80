// Package queue implements the per-lane/per-turn vehicle queue of
// spec.md §4.2: on-demand position accounting over a structural
// ordered list of members, grounded on the teacher's generic
// container.List (utils/container/list.go), reused here unmodified
// because Member's method set already satisfies the list's
// IHasVAndLength constraint.
package queue

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/utils/container"
)

// node is the list element type queue stores: container.List is
// generic over a value and an "Extra" payload, but queue has no use
// for Extra, so it is instantiated as struct{}.
type node = container.ListNode[Member, struct{}]

// Queue holds the ordered members of one Traversable's lane or turn,
// head (most advanced) to tail. It never stores positions; positions
// are computed on demand by Positions.
type Queue struct {
	Traversable mapapi.Traversable
	Length      float64 // the traversable's own length in meters
	// FollowingDistance is the minimum gap kept between a member's
	// front and the back of the member ahead of it (I1/I2 in
	// spec.md §8).
	FollowingDistance float64
	// ReservedLength is space promised to cars that have been granted
	// entry by the intersection arbiter but have not yet physically
	// arrived (Glossary: Reserved length).
	ReservedLength float64

	list    *container.List[Member, struct{}]
	byID    map[MemberID]*node
}

// NewQueue creates an empty queue for a traversable of the given
// length.
func NewQueue(t mapapi.Traversable, length, followingDistance float64) *Queue {
	return &Queue{
		Traversable:       t,
		Length:            length,
		FollowingDistance: followingDistance,
		list:              &container.List[Member, struct{}]{ID: t.String()},
		byID:              make(map[MemberID]*node),
	}
}

// Len reports the number of members currently in the queue (active
// cars, static blockages, and dynamic blockages combined).
func (q *Queue) Len() int { return q.list.Len() }

// Members returns the members in head-to-tail order.
func (q *Queue) Members() []Member { return q.list.Values() }

// Head returns the most-advanced member, or nil if the queue is
// empty.
func (q *Queue) Head() Member {
	if n := q.list.First(); n != nil {
		return n.Value
	}
	return nil
}

// Positions computes every member's effective front position at time
// now, walking head to tail per spec.md §4.2:
//  1. The head's position is its own FrontAt(now), clamped to Length
//     if it is a laggy head (its underlying state lives on the next
//     traversable and can report a position beyond our own length).
//  2. Each following member's front is
//     min(its own FrontAt(now), previous.front − previous.length − FollowingDistance).
//     A member clamped this way is, per spec.md §4.3, subsequently
//     transitioned to Queued by the driving state machine -- Queue
//     itself does not mutate any car state here, it only reports
//     positions.
func (q *Queue) Positions(now float64) map[MemberID]float64 {
	out := make(map[MemberID]float64, q.list.Len())
	var prevFront, prevLength float64
	first := true
	for n := q.list.First(); n != nil; n = n.Next() {
		m := n.Value
		own := m.FrontAt(now)
		if cm, ok := m.(*CarMember); ok && cm.IsLaggyHead {
			if own > q.Length {
				own = q.Length
			}
		}
		front := own
		if !first {
			limit := prevFront - prevLength - q.FollowingDistance
			if limit < front {
				front = limit
			}
		}
		out[m.ID()] = front
		prevFront, prevLength, first = front, m.Length(), false
	}
	return out
}

// GetIdxToInsertCar returns the list index a vehicle of the given
// length could occupy so that its front lands at frontDist while
// keeping I1/I2 satisfied against both neighbors, or ok=false if no
// such index exists.
func (q *Queue) GetIdxToInsertCar(frontDist, length, now float64) (idx int, ok bool) {
	positions := q.Positions(now)
	i := 0
	var prevFront float64 = q.Length
	var prevLength float64
	first := true
	for n := q.list.First(); n != nil; n, i = n.Next(), i+1 {
		front := positions[n.Value.ID()]
		if !first && frontDist > prevFront-prevLength-q.FollowingDistance+1e-9 {
			// Would overlap the member ahead at index i-1.
			return 0, false
		}
		if frontDist >= front+n.Value.Length()+q.FollowingDistance-1e-9 {
			// frontDist fits ahead of this member; insert before it.
			return i, true
		}
		prevFront, prevLength, first = front, n.Value.Length(), false
	}
	// Fits at the tail, provided it stays behind the last member and
	// doesn't overrun 0.
	if !first && frontDist > prevFront-prevLength-q.FollowingDistance+1e-9 {
		return 0, false
	}
	if frontDist-length < -1e-9 {
		return 0, false
	}
	return i, true
}

// CanBlockFromDriveway reports whether a static blockage of the given
// length could be placed with its front at pos without violating
// I1/I2 against the current members -- the same admission test as
// GetIdxToInsertCar, used before AddStaticBlockage.
func (q *Queue) CanBlockFromDriveway(pos, length, now float64) bool {
	_, ok := q.GetIdxToInsertCar(pos, length, now)
	return ok
}

// InsertCarAtIdx inserts m (almost always a *CarMember) at list
// position idx (0 = new head). container.ListNode.InsertBefore
// repoints the list's head pointer itself when the target was the old
// head, so no special-casing is needed here.
func (q *Queue) InsertCarAtIdx(idx int, m Member) {
	n := &node{Value: m}
	i := 0
	for cur := q.list.First(); cur != nil; cur, i = cur.Next(), i+1 {
		if i == idx {
			cur.InsertBefore(n)
			q.byID[m.ID()] = n
			return
		}
	}
	q.list.PushBack(n)
	q.byID[m.ID()] = n
}

// PushCarOntoEnd appends m as the new tail member.
func (q *Queue) PushCarOntoEnd(m Member) {
	n := &node{Value: m}
	q.list.PushBack(n)
	q.byID[m.ID()] = n
}

// RemoveMember removes the member identified by id. Panics if absent,
// since every caller is expected to already know the member is there
// (spec.md §7 treats this class of bug as an invariant violation).
func (q *Queue) RemoveMember(id MemberID) {
	n, ok := q.byID[id]
	if !ok {
		panic(fmt.Sprintf("queue: remove of absent member %+v on %s", id, q.Traversable))
	}
	q.list.Remove(n)
	delete(q.byID, id)
}

// RemoveCarFromIdx removes and returns the member currently at list
// index idx.
func (q *Queue) RemoveCarFromIdx(idx int) Member {
	i := 0
	for n := q.list.First(); n != nil; n = n.Next() {
		if i == idx {
			q.list.Remove(n)
			delete(q.byID, n.Value.ID())
			return n.Value
		}
		i++
	}
	panic(fmt.Sprintf("queue: RemoveCarFromIdx(%d) out of range on %s", idx, q.Traversable))
}

// MoveFirstCarToLaggyHead marks the current head member (which must be
// a *CarMember) as a laggy head: still structurally first in the
// queue, but its reported front is now clamped to Length per
// Positions, since its underlying CarState has already moved onto the
// next traversable.
func (q *Queue) MoveFirstCarToLaggyHead() {
	n := q.list.First()
	if n == nil {
		return
	}
	if cm, ok := n.Value.(*CarMember); ok {
		cm.IsLaggyHead = true
	}
}

// AddStaticBlockage inserts a static blockage with the given cause and
// index (disambiguating multiple blockages from the same cause) at
// list position idx, spanning [back, front].
func (q *Queue) AddStaticBlockage(cause string, index, idx int, front, back float64) {
	b := &StaticBlockage{Cause: cause, Index: index, Front: front, BlockLength: front - back}
	q.InsertCarAtIdx(idx, b)
}

// ClearStaticBlockage removes the static blockage with the given
// cause/index. Idempotent per spec.md §8 only if the caller first
// checks existence with HasStaticBlockage; calling this when absent
// panics, matching RemoveMember's "assert the blockage existed"
// contract named in spec.md §8's idempotence property.
func (q *Queue) ClearStaticBlockage(cause string, index int) {
	q.RemoveMember(MemberID{Kind: MemberStaticBlockage, Cause: cause, Index: index})
}

// HasStaticBlockage reports whether a static blockage with the given
// cause/index is currently present, so callers can make
// ClearStaticBlockage idempotent themselves.
func (q *Queue) HasStaticBlockage(cause string, index int) bool {
	_, ok := q.byID[MemberID{Kind: MemberStaticBlockage, Cause: cause, Index: index}]
	return ok
}

// ReplaceCarWithDynamicBlockage swaps the *CarMember for car (which
// must currently be in the queue) for a DynamicBlockage frozen at its
// current front, at the same list position. Used when a car commits
// to a lane change: it is already inserted into the target queue, but
// its body still occupies this one until the change completes.
func (q *Queue) ReplaceCarWithDynamicBlockage(car Member, now float64) {
	id := car.ID()
	n, ok := q.byID[id]
	if !ok {
		panic(fmt.Sprintf("queue: ReplaceCarWithDynamicBlockage of absent car %+v on %s", id, q.Traversable))
	}
	front := car.FrontAt(now)
	blockage := &DynamicBlockage{CarID: id.Car, Front: front, BlockLength: car.Length()}
	delete(q.byID, id)
	n.Value = blockage
	q.byID[blockage.ID()] = n
}

// ClearDynamicBlockage removes the dynamic blockage left behind by
// car.
func (q *Queue) ClearDynamicBlockage(car ids.CarID) {
	q.RemoveMember(MemberID{Kind: MemberDynamicBlockage, Car: car})
}

// TryToReserveEntry bumps ReservedLength by length, refusing if doing
// so would overflow the traversable's capacity and allowBlockTheBox is
// false (the box check of spec.md §4.4). On success the caller MUST
// eventually call FreeReservedSpace for the same amount (round-trip
// law in spec.md §8).
func (q *Queue) TryToReserveEntry(length float64, allowBlockTheBox bool) bool {
	occupied := q.activeLength() + q.ReservedLength
	if occupied+length > q.Length+1e-9 && !allowBlockTheBox {
		return false
	}
	q.ReservedLength += length
	return true
}

// FreeReservedSpace is the inverse of TryToReserveEntry, called once
// the car has fully entered the queue as a real member. Panics if it
// would drive ReservedLength negative -- an invariant violation per
// spec.md §7.
func (q *Queue) FreeReservedSpace(length float64) {
	q.ReservedLength -= length
	if q.ReservedLength < -1e-9 {
		panic(fmt.Sprintf("queue: reserved length went negative on %s", q.Traversable))
	}
	if q.ReservedLength < 0 {
		q.ReservedLength = 0
	}
}

// activeLength sums the length of every real member (cars and
// blockages alike, which all occupy physical space) plus the
// following distance each one requires, for the capacity invariant in
// spec.md §8.
func (q *Queue) activeLength() float64 {
	var total float64
	for n := q.list.First(); n != nil; n = n.Next() {
		total += n.Value.Length() + q.FollowingDistance
	}
	return total
}
