package driving

import (
	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/utils/config"
	"github.com/fiblab-sim/moss-core/utils/randengine"
)

// Car is one driving agent: a car, bike, bus, or train (ids.VehicleKind
// distinguishes them; the state machine itself is shared across kinds,
// matching the "supplement bus/train vehicle-kind support" addition in
// SPEC_FULL.md).
type Car struct {
	ID       ids.CarID
	Length   float64
	MaxSpeed float64
	Trip     ids.TripID

	State State
	// Current is the traversable the car's State is relative to. It
	// changes on every successful turn grant (WaitingToAdvance ->
	// Crossing) and on every committed lane change.
	Current mapapi.Traversable
	// Path is the remaining route, Path.Steps[0] always equal to
	// Current once a car has spawned.
	Path mapapi.Path
	// LastSteps records traversables the car has fully departed but
	// whose laggy-head cleanup has not yet fired, trimmed from the
	// back by UpdateLaggyHead (spec.md §4.3.2).
	LastSteps []mapapi.Traversable

	Rand *randengine.Engine

	// totalBlockedTime is not written by any transition, so it stays
	// zero; Trip.BlockedTime, which TripFinished reports, likewise
	// stays zero.
	totalBlockedTime float64
}

// FrontAt implements queue.Positioner by delegating to the car's
// current State.
func (c *Car) FrontAt(now float64) float64 { return c.State.FrontAt(now) }

var _ queue.Positioner = (*Car)(nil)

// AsMember wraps the car as a queue.CarMember for insertion into a
// Queue.
func (c *Car) AsMember() *queue.CarMember {
	return &queue.CarMember{CarID: c.ID, CarLength: c.Length, MaxSpeed: c.MaxSpeed, Positioner: c}
}

// World is the narrow set of collaborators the driving package needs
// from its owning sim.Sim, kept as an interface so driving has no
// import-cycle dependency on the sim package (sim imports driving, not
// the reverse -- spec.md §9's "no entity holds a direct pointer to
// another", generalized to packages).
type World interface {
	Now() float64
	Config() *config.RuntimeConfig
	Map() mapapi.Map
	Scheduler() *scheduler.Scheduler
	Emit(events.Event)

	// Queue resolves a traversable to its live Queue, creating one on
	// first use if the map collaborator knows about the traversable.
	Queue(t mapapi.Traversable) *queue.Queue
	// Car resolves a CarID to its live Car, or nil if it is no longer
	// in the sim.
	Car(id ids.CarID) *Car

	// Intersection is the subset of the intersection arbiter's API
	// driving needs: requesting a turn and being notified that one has
	// finished. Defined narrowly here (rather than importing package
	// intersection's full Arbiter type) to keep driving's dependency
	// surface to exactly what spec.md §4.3 calls out.
	RequestTurn(turn ids.TurnID, car ids.CarID, speed, now float64, downstream *queue.Queue) bool
	FinishTurn(turn ids.TurnID, car ids.CarID)

	// EndDrivingLeg finishes the car's current trip leg with the given
	// end action, handing off to parking/border-vanish/handoff
	// handling. EndDrivingLeg also removes the car from the sim's live
	// car table.
	EndDrivingLeg(c *Car, action mapapi.EndAction)
	// ScheduleRetry pushes cmd again after delay seconds. The driving
	// state machine uses it for the creep-forward retry when the next
	// lane has no room for the car yet.
	ScheduleRetry(cmd scheduler.Command, delay float64)

	// ReserveParkingSpot resolves and reserves a parking spot for c as
	// it finishes a leg ending in EndParkOnLane/EndParkInBuilding, or
	// ok=false if none is free yet (the caller retries). Backs the
	// Queued->Parking transition of spec.md §4.3's state diagram.
	ReserveParkingSpot(c *Car) (ids.ParkingSpotID, bool)
}
