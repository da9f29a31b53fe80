// Package events defines the flat event stream the sim emits for
// consumption by analytics and the trip manager's own bookkeeping.
// Every event is a small struct implementing the Event marker
// interface; callers type-switch on the concrete type. See spec.md §6.
package events

import (
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
)

// Event is implemented by every event struct in this package. The
// marker method carries no behavior; it exists only to close the set
// of types a sim.Sim may emit.
type Event interface {
	isEvent()
}

// TripMode names the leg mode a trip finished or was cancelled in.
type TripMode int

const (
	ModeWalk TripMode = iota
	ModeDrive
	ModeBike
	ModeRideBus
)

func (m TripMode) String() string {
	switch m {
	case ModeWalk:
		return "walk"
	case ModeDrive:
		return "drive"
	case ModeBike:
		return "bike"
	case ModeRideBus:
		return "ride_bus"
	default:
		return "unknown"
	}
}

// PhaseType names what TripPhaseStarting is announcing.
type PhaseType int

const (
	PhaseWalking PhaseType = iota
	PhaseDriving
	PhaseBiking
	PhaseWaitingForBus
	PhaseRidingBus
)

type TripPhaseStarting struct {
	Trip          ids.TripID
	Person        ids.PersonID
	PathRequest   *mapapi.PathRequest // nil if this phase needed no path (e.g. riding a bus)
	Phase         PhaseType
}

func (TripPhaseStarting) isEvent() {}

type TripFinished struct {
	Trip       ids.TripID
	Mode       TripMode
	TotalTime  float64
	BlockedTime float64
}

func (TripFinished) isEvent() {}

type TripCancelled struct {
	Trip   ids.TripID
	Mode   TripMode
	Reason string
}

func (TripCancelled) isEvent() {}

type AgentEntersTraversable struct {
	Time        float64
	Car         *ids.CarID // nil for a pedestrian
	Person      ids.PersonID
	Traversable mapapi.Traversable
}

func (AgentEntersTraversable) isEvent() {}

type PathAmended struct {
	Trip ids.TripID
	Path mapapi.Path
}

func (PathAmended) isEvent() {}

type IntersectionDelayMeasured struct {
	Intersection ids.IntersectionID
	Turn         ids.TurnID
	WaitTime     float64
}

func (IntersectionDelayMeasured) isEvent() {}

type PersonEntersBuilding struct {
	Person   ids.PersonID
	Building ids.BuildingID
}

func (PersonEntersBuilding) isEvent() {}

type PersonLeavesBuilding struct {
	Person   ids.PersonID
	Building ids.BuildingID
}

func (PersonLeavesBuilding) isEvent() {}

type PersonEntersMap struct {
	Person ids.PersonID
}

func (PersonEntersMap) isEvent() {}

type PersonLeavesMap struct {
	Person ids.PersonID
}

func (PersonLeavesMap) isEvent() {}

type PedReachedParkingSpot struct {
	Person ids.PersonID
	Spot   ids.ParkingSpotID
}

func (PedReachedParkingSpot) isEvent() {}

type CarReachedParkingSpot struct {
	Car  ids.CarID
	Spot ids.ParkingSpotID
}

func (CarReachedParkingSpot) isEvent() {}

type CarLeftParkingSpot struct {
	Car  ids.CarID
	Spot ids.ParkingSpotID
}

func (CarLeftParkingSpot) isEvent() {}

type BikeStoppedAtSidewalk struct {
	Car ids.CarID
}

func (BikeStoppedAtSidewalk) isEvent() {}

// PedReachedBusStop, PedBoardedBus, and PersonLeftBus name the three
// bus-leg handoff points of spec.md §4.6's leg-completion callbacks.
type PedReachedBusStop struct {
	Person ids.PersonID
}

func (PedReachedBusStop) isEvent() {}

type PedBoardedBus struct {
	Person ids.PersonID
}

func (PedBoardedBus) isEvent() {}

type PersonLeftBus struct {
	Person ids.PersonID
}

func (PersonLeftBus) isEvent() {}

// Problem classifies a ProblemEncountered event. Supplemented from
// original_source's driving problem taxonomy (not named by spec.md,
// whose §4.3 step 1 only describes the OvertakeDesired trigger).
type Problem int

const (
	ProblemOvertakeDesired Problem = iota
	ProblemIntersectionDeadlockEscaped
	ProblemImpossibleSignalStage
)

func (p Problem) String() string {
	switch p {
	case ProblemOvertakeDesired:
		return "overtake_desired"
	case ProblemIntersectionDeadlockEscaped:
		return "intersection_deadlock_escaped"
	case ProblemImpossibleSignalStage:
		return "impossible_signal_stage"
	default:
		return "unknown_problem"
	}
}

type ProblemEncountered struct {
	Trip    ids.TripID
	Problem Problem
}

func (ProblemEncountered) isEvent() {}

type Alert struct {
	Location mapapi.Traversable
	Message  string
}

func (Alert) isEvent() {}
