// Package driving implements the per-car state machine of spec.md
// §4.3: the CarState tagged union, its UpdateCar transitions, the
// overtaking lane-choice heuristic (§4.3.1), and laggy-head cleanup
// (§4.3.2). Grounded on the teacher's entity/person/controller.go for
// the car-following/overtaking shape of the problem, generalized away
// from IDM continuous-time physics to the spec's single-event
// crossing model.
package driving

import (
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
)

// Interval is a closed [Start, End] range, used both for simulated
// time spans and for the distance covered over such a span.
type Interval struct {
	Start, End float64
}

// At linearly interpolates within the interval: frac 0 at Start, 1 at
// End.
func (iv Interval) At(frac float64) float64 {
	return iv.Start + (iv.End-iv.Start)*frac
}

// Frac returns how far t has progressed through [timeInterval], clamped
// to [0, 1].
func (iv Interval) Frac(t float64) float64 {
	if iv.End <= iv.Start {
		return 1
	}
	f := (t - iv.Start) / (iv.End - iv.Start)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Kind tags which variant of CarState a car is currently in. See
// spec.md §4.3's table.
type Kind int

const (
	Crossing Kind = iota
	Queued
	WaitingToAdvance
	Unparking
	Parking
	IdlingAtStop
	ChangingLanes
)

func (k Kind) String() string {
	switch k {
	case Crossing:
		return "Crossing"
	case Queued:
		return "Queued"
	case WaitingToAdvance:
		return "WaitingToAdvance"
	case Unparking:
		return "Unparking"
	case Parking:
		return "Parking"
	case IdlingAtStop:
		return "IdlingAtStop"
	case ChangingLanes:
		return "ChangingLanes"
	default:
		return "Unknown"
	}
}

// State is the tagged union described in spec.md §4.3. Exactly the
// fields relevant to Kind are meaningful at any moment; transitions
// always replace the whole value rather than mutating individual
// fields in place (spec.md §9's guidance on enums-with-payloads).
type State struct {
	Kind Kind

	// Crossing: moving freely between TimeInterval.Start and .End,
	// covering DistInterval.Start to .End along the current
	// traversable.
	TimeInterval Interval
	DistInterval Interval

	// Queued / WaitingToAdvance: BlockedSince is the blocked-time
	// field of these states; no transition adds the elapsed blocked
	// time to Car.totalBlockedTime. StoppedAt is the
	// "stopped at front" marker position.
	BlockedSince    float64
	StoppedAt       float64
	WantChangeLanes bool

	// Unparking / Parking: Spot identifies the parking spot; Front is
	// the driving-lane position the spot resolves to.
	Spot  ids.ParkingSpotID
	Front float64

	// IdlingAtStop: Dist is the position along the lane where the bus
	// stop sits.
	Dist float64

	// ChangingLanes: From/To name the source and destination queues;
	// NewTimeInterval/NewDistInterval are the Crossing state the car
	// will adopt in To once LCTime elapses; LCTime bounds the dynamic
	// blockage left in From.
	From          mapapi.Traversable
	To            mapapi.Traversable
	NewTimeInterval Interval
	NewDistInterval Interval
	LCTime          Interval
}

// FrontAt implements queue.Positioner: the car's own interpolated
// front position at time now, ignoring any clamping against queue
// neighbors (Queue.Positions applies that separately).
func (s State) FrontAt(now float64) float64 {
	switch s.Kind {
	case Crossing, ChangingLanes:
		return s.DistInterval.At(s.TimeInterval.Frac(now))
	case Unparking, Parking:
		return s.Front
	case IdlingAtStop:
		return s.Dist
	default: // Queued, WaitingToAdvance
		return s.StoppedAt
	}
}

var _ queue.Positioner = State{}
