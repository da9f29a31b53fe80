// Package trip implements the trip manager of spec.md §4.6: Person and
// Trip/Leg records, the delayed set of trips waiting on a blind retry
// of their current leg, the leg-completion callbacks driving and
// parking invoke when an agent finishes a leg, and trip cancellation.
// A trip is started at its StartsAt whether or not its person is still
// on an earlier trip; there is no per-person queue of trips. Grounded on the teacher's entity/person/schedule
// package (trip/leg sequencing shape), generalized from its
// continuous-time replay to the spec's event-driven callback model.
package trip

import (
	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
)

// LegMode distinguishes how a Leg is carried out.
type LegMode int

const (
	LegWalk LegMode = iota
	LegDrive
	LegBike
	LegBus
)

func (m LegMode) String() string {
	switch m {
	case LegWalk:
		return "walk"
	case LegDrive:
		return "drive"
	case LegBike:
		return "bike"
	case LegBus:
		return "bus"
	default:
		return "unknown"
	}
}

// Leg is one mode-homogeneous segment of a Trip.
type Leg struct {
	Mode LegMode
	From mapapi.Position
	To   mapapi.Position
	// Vehicle, for Drive/Bike legs, names the car the person uses;
	// zero-value if the person doesn't own one and must be spawned a
	// new CarID at leg start.
	Vehicle ids.CarID
}

// Trip is one person's sequence of legs, each leg at a different
// start time only once the previous leg (and any intervening wait)
// completes.
type Trip struct {
	ID       ids.TripID
	Person   ids.PersonID
	Legs     []Leg
	LegIdx   int
	StartsAt float64

	// Bookkeeping for TripFinished/TripCancelled accounting.
	DepartedAt  float64
	BlockedTime float64
}

// CurrentLeg returns the leg in progress, or ok=false if the trip has
// completed every leg.
func (t *Trip) CurrentLeg() (Leg, bool) {
	if t.LegIdx >= len(t.Legs) {
		return Leg{}, false
	}
	return t.Legs[t.LegIdx], true
}

func (t *Trip) currentMode() events.TripMode {
	leg, ok := t.CurrentLeg()
	if !ok {
		return events.ModeWalk
	}
	switch leg.Mode {
	case LegDrive:
		return events.ModeDrive
	case LegBike:
		return events.ModeBike
	case LegBus:
		return events.ModeRideBus
	default:
		return events.ModeWalk
	}
}

// CancelReason names why a trip was cut short, for TripCancelled's
// payload.
type CancelReason int

const (
	ReasonPathfindingFailed CancelReason = iota
	ReasonOutOfParking
	ReasonAbandonedUnstarted
)

func (r CancelReason) String() string {
	switch r {
	case ReasonPathfindingFailed:
		return "pathfinding_failed"
	case ReasonOutOfParking:
		return "out_of_parking"
	case ReasonAbandonedUnstarted:
		return "abandoned_unstarted"
	default:
		return "unknown"
	}
}

// Person is one simulated traveler: their home/identity and the trips
// on their schedule, consumed one at a time by the Manager.
type Person struct {
	ID    ids.PersonID
	Trips []*Trip
}
