package scheduler

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
)

// Command is one of the tagged-union members named in spec.md §4.1.
// Key returns the identity used by Update/Cancel to find a previously
// scheduled, logically-equivalent command regardless of what time it
// is currently scheduled at (e.g. two UpdateCar(V) commands for the
// same car are the same command no matter their times).
type Command interface {
	Key() CommandKey
	fmt.Stringer
}

// CommandKey is a comparable identity for a Command, usable as a map
// key. Kind distinguishes the command type; Subject carries whatever
// that command is about (a car id, a person id, an intersection id,
// ...). Two commands with equal CommandKeys are "the same pending
// command" for scheduler.Update/Cancel purposes.
type CommandKey struct {
	Kind    CommandKind
	Subject int64
}

type CommandKind int

const (
	KindStartTrip CommandKind = iota
	KindSpawnCar
	KindSpawnPed
	KindUpdateCar
	KindUpdateLaggyHead
	KindUpdatePed
	KindUpdateIntersection
	KindStartBus
	KindCallback
)

func (k CommandKind) String() string {
	switch k {
	case KindStartTrip:
		return "StartTrip"
	case KindSpawnCar:
		return "SpawnCar"
	case KindSpawnPed:
		return "SpawnPed"
	case KindUpdateCar:
		return "UpdateCar"
	case KindUpdateLaggyHead:
		return "UpdateLaggyHead"
	case KindUpdatePed:
		return "UpdatePed"
	case KindUpdateIntersection:
		return "UpdateIntersection"
	case KindStartBus:
		return "StartBus"
	case KindCallback:
		return "Callback"
	default:
		return "Unknown"
	}
}

// StartTrip asks the trip manager to begin a trip's current leg; it is
// also pushed again as the blind retry of a leg that failed to start.
// The manager does not check whether the person is already mid-trip.
type StartTrip struct {
	Trip ids.TripID
}

func (c StartTrip) Key() CommandKey { return CommandKey{KindStartTrip, int64(c.Trip)} }
func (c StartTrip) String() string  { return fmt.Sprintf("StartTrip(%d)", c.Trip) }

// SpawnCar asks the driving subsystem to insert a new car at its
// starting position. RetryOnFailure controls whether a spawn failure
// (no room at the start position) is retried or converted to a trip
// cancellation, per spec.md §7.
type SpawnCar struct {
	Car            ids.CarID
	Trip           ids.TripID
	Start          mapapi.Position
	Path           mapapi.Path
	RetryOnFailure bool
}

func (c SpawnCar) Key() CommandKey { return CommandKey{KindSpawnCar, int64(c.Car.VehicleID)} }
func (c SpawnCar) String() string  { return fmt.Sprintf("SpawnCar(%s)", c.Car) }

// SpawnPed asks the walking collaborator to insert a new pedestrian.
type SpawnPed struct {
	Person ids.PersonID
	Trip   ids.TripID
	Start  mapapi.Position
	Path   mapapi.Path
}

func (c SpawnPed) Key() CommandKey { return CommandKey{KindSpawnPed, int64(c.Person)} }
func (c SpawnPed) String() string  { return fmt.Sprintf("SpawnPed(%d)", c.Person) }

// UpdateCar drives one step of the driving state machine for Car (see
// spec.md §4.3). It is the most frequently rescheduled command in the
// system; Update's job is to move an already-pending UpdateCar(Car) to
// a new time rather than queue a duplicate.
type UpdateCar struct {
	Car ids.CarID
}

func (c UpdateCar) Key() CommandKey { return CommandKey{KindUpdateCar, int64(c.Car.VehicleID)} }
func (c UpdateCar) String() string  { return fmt.Sprintf("UpdateCar(%s)", c.Car) }

// UpdateLaggyHead fires when a car's tail is estimated to have cleared
// its previous traversable (spec.md §4.3.2).
type UpdateLaggyHead struct {
	Car ids.CarID
}

func (c UpdateLaggyHead) Key() CommandKey {
	return CommandKey{KindUpdateLaggyHead, int64(c.Car.VehicleID)}
}
func (c UpdateLaggyHead) String() string { return fmt.Sprintf("UpdateLaggyHead(%s)", c.Car) }

// UpdatePed drives one step of the pedestrian state machine. The walk
// simulator itself is an external collaborator (spec.md §1); the core
// only needs to schedule its wakeups.
type UpdatePed struct {
	Person ids.PersonID
}

func (c UpdatePed) Key() CommandKey { return CommandKey{KindUpdatePed, int64(c.Person)} }
func (c UpdatePed) String() string  { return fmt.Sprintf("UpdatePed(%d)", c.Person) }

// UpdateIntersection advances a signal's stage, or re-evaluates a
// stop-sign/freeform intersection's waiters.
type UpdateIntersection struct {
	Intersection ids.IntersectionID
}

func (c UpdateIntersection) Key() CommandKey {
	return CommandKey{KindUpdateIntersection, int64(c.Intersection)}
}
func (c UpdateIntersection) String() string {
	return fmt.Sprintf("UpdateIntersection(%d)", c.Intersection)
}

// StartBus spawns a new bus run of Route at Time.
type StartBus struct {
	Route int32
	Time  float64
}

func (c StartBus) Key() CommandKey { return CommandKey{KindStartBus, int64(c.Route)} }
func (c StartBus) String() string  { return fmt.Sprintf("StartBus(route=%d)", c.Route) }

// Callback reschedules itself every Frequency seconds; sim.Sim uses it
// to drive periodic housekeeping (e.g. invariant checks in tests).
// Subject distinguishes independently-registered callbacks.
type Callback struct {
	Subject   int64
	Frequency float64
}

func (c Callback) Key() CommandKey { return CommandKey{KindCallback, c.Subject} }
func (c Callback) String() string  { return fmt.Sprintf("Callback(%d, every %vs)", c.Subject, c.Frequency) }
