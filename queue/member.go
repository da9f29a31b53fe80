package queue

import "github.com/fiblab-sim/moss-core/ids"

// MemberKind distinguishes the three tagged-union members of a Queue
// (spec.md §4.2, Glossary: active car, static blockage, dynamic
// blockage).
type MemberKind int

const (
	MemberCar MemberKind = iota
	MemberStaticBlockage
	MemberDynamicBlockage
)

// MemberID identifies one queue member. Car is valid for MemberCar and
// MemberDynamicBlockage; Cause+Index is valid for MemberStaticBlockage
// (a lane may host more than one static blockage at once, one per
// unparking car, so Index disambiguates same-cause blockages).
type MemberID struct {
	Kind  MemberKind
	Car   ids.CarID
	Cause string
	Index int
}

// Positioner is implemented by the driving state machine's per-car
// state. Given the current sim time it reports the car's own
// interpolated front position along whatever traversable it currently
// occupies, ignoring the clamping effect of members ahead of it in the
// queue -- that clamping is Queue's job, not the car's. Kept as an
// interface here, rather than importing driving's CarState directly,
// so queue has no dependency on the driving package (driving depends
// on queue, not the reverse).
type Positioner interface {
	FrontAt(now float64) float64
}

// Member is one occupant of a Queue's ordered list, ordered head
// (most advanced) to tail. The List's generic V()/Length() accessors
// (container.IHasVAndLength) are satisfied directly by this interface,
// so Queue reuses container.List[Member, struct{}] unmodified.
type Member interface {
	ID() MemberID
	Length() float64
	V() float64
	FrontAt(now float64) float64
}

// CarMember is a live vehicle participating in the queue. IsLaggyHead
// marks a head member that has already advanced onto the next
// traversable but whose tail still protrudes into this one (spec.md
// §4.3.2); its FrontAt is computed relative to the *next* traversable
// and so must be clamped to this queue's length by the caller.
type CarMember struct {
	CarID       ids.CarID
	CarLength   float64
	MaxSpeed    float64
	Positioner  Positioner
	IsLaggyHead bool
}

func (m *CarMember) ID() MemberID                { return MemberID{Kind: MemberCar, Car: m.CarID} }
func (m *CarMember) Length() float64             { return m.CarLength }
func (m *CarMember) V() float64                  { return m.MaxSpeed }
func (m *CarMember) FrontAt(now float64) float64 { return m.Positioner.FrontAt(now) }

// StaticBlockage represents a vehicle occupying lane space while
// unparking from offstreet, without being an active queue participant
// (Glossary: Static blockage). It never moves.
type StaticBlockage struct {
	Cause       string
	Index       int
	Front       float64
	BlockLength float64
}

func (b *StaticBlockage) ID() MemberID {
	return MemberID{Kind: MemberStaticBlockage, Cause: b.Cause, Index: b.Index}
}
func (b *StaticBlockage) Length() float64             { return b.BlockLength }
func (b *StaticBlockage) V() float64                  { return 0 }
func (b *StaticBlockage) FrontAt(now float64) float64 { return b.Front }

// DynamicBlockage represents a car that has already been inserted
// into its destination queue mid-lane-change; its body still intrudes
// on the original queue until the lane change finishes (Glossary:
// Dynamic blockage).
type DynamicBlockage struct {
	CarID       ids.CarID
	Front       float64
	BlockLength float64
}

func (b *DynamicBlockage) ID() MemberID {
	return MemberID{Kind: MemberDynamicBlockage, Car: b.CarID}
}
func (b *DynamicBlockage) Length() float64             { return b.BlockLength }
func (b *DynamicBlockage) V() float64                  { return 0 }
func (b *DynamicBlockage) FrontAt(now float64) float64 { return b.Front }
