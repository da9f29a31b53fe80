package trip

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/parking"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/utils/config"
)

// World is the narrow set of collaborators the trip manager needs
// from its owning sim.Sim, kept as an interface for the same
// import-cycle reason as driving.World.
type World interface {
	Now() float64
	Config() *config.RuntimeConfig
	Scheduler() *scheduler.Scheduler
	Emit(events.Event)
	Map() mapapi.Map
	Parking() parking.Store

	// SpawnCarLeg and SpawnPedLeg ask the sim to begin driving/walking
	// a leg; they return ok=false if the attempt failed transiently
	// (no path found yet, no parking spot reachable) and should be
	// retried.
	SpawnCarLeg(trip *Trip, leg Leg) (ok bool)
	SpawnPedLeg(trip *Trip, leg Leg) (ok bool)
	StartBusLeg(trip *Trip, leg Leg) (ok bool)
	// AbandonVehicle warps an in-flight vehicle to the nearest free
	// parking spot from its current position, used by CancelTrip.
	AbandonVehicle(car ids.CarID, from mapapi.Position)
}

// Manager owns every Person and Trip in the sim and dispatches the
// leg-completion callbacks named in spec.md §4.6.
type Manager struct {
	persons map[ids.PersonID]*Person
	trips   map[ids.TripID]*Trip
	// delayed holds trips whose start (or whose next leg) could not be
	// begun yet and are waiting on a blind retry.
	delayed map[ids.TripID]bool
}

// NewManager creates an empty trip manager.
func NewManager() *Manager {
	return &Manager{
		persons: make(map[ids.PersonID]*Person),
		trips:   make(map[ids.TripID]*Trip),
		delayed: make(map[ids.TripID]bool),
	}
}

// AddPerson registers a person and schedules StartTrip for their first
// trip.
func (m *Manager) AddPerson(w World, p *Person) {
	m.persons[p.ID] = p
	for _, t := range p.Trips {
		m.trips[t.ID] = t
		w.Scheduler().Push(t.StartsAt, scheduler.StartTrip{Trip: t.ID})
	}
}

func (m *Manager) Trip(id ids.TripID) *Trip { return m.trips[id] }
func (m *Manager) Person(id ids.PersonID) *Person { return m.persons[id] }

// StartTrip begins (or resumes, after a delayed retry) a trip's
// current leg.
func (m *Manager) StartTrip(w World, tripID ids.TripID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	delete(m.delayed, tripID)
	leg, ok := t.CurrentLeg()
	if !ok {
		return // every leg already completed; nothing to start
	}
	if t.DepartedAt == 0 {
		t.DepartedAt = w.Now()
	}
	w.Emit(events.TripPhaseStarting{Trip: t.ID, Person: t.Person, Phase: phaseFor(leg.Mode)})

	var started bool
	switch leg.Mode {
	case LegDrive, LegBike:
		started = w.SpawnCarLeg(t, leg)
	case LegBus:
		started = w.StartBusLeg(t, leg)
	default:
		started = w.SpawnPedLeg(t, leg)
	}
	if !started {
		m.delayed[tripID] = true
		w.Scheduler().Push(w.Now()+w.Config().Tunables.BlindRetryToCreepForwards, scheduler.StartTrip{Trip: t.ID})
	}
}

func phaseFor(mode LegMode) events.PhaseType {
	switch mode {
	case LegDrive:
		return events.PhaseDriving
	case LegBike:
		return events.PhaseBiking
	case LegBus:
		return events.PhaseWaitingForBus
	default:
		return events.PhaseWalking
	}
}

// advance moves the trip to its next leg, starting it immediately if
// there is one, or emitting TripFinished if the trip is complete.
func (m *Manager) advance(w World, t *Trip) {
	t.LegIdx++
	if _, ok := t.CurrentLeg(); ok {
		m.StartTrip(w, t.ID)
		return
	}
	w.Emit(events.TripFinished{
		Trip:        t.ID,
		Mode:        t.currentModeAtCompletion(),
		TotalTime:   w.Now() - t.DepartedAt,
		BlockedTime: t.BlockedTime,
	})
	delete(m.trips, t.ID)
}

// currentModeAtCompletion reports the mode of the last leg actually
// run, since LegIdx has already advanced past the end by the time
// TripFinished is emitted.
func (t *Trip) currentModeAtCompletion() events.TripMode {
	if len(t.Legs) == 0 {
		return events.ModeWalk
	}
	last := t.Legs[len(t.Legs)-1]
	switch last.Mode {
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

// CarReachedParkingSpot is the leg-completion callback fired once
// driving.EndDrivingLeg resolves to EndParkOnLane/EndParkInBuilding.
func (m *Manager) CarReachedParkingSpot(w World, tripID ids.TripID, car ids.CarID, spot ids.ParkingSpotID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	w.Emit(events.CarReachedParkingSpot{Car: car, Spot: spot})
	m.advance(w, t)
}

// BikeReachedEnd is the callback for EndBikeToWalkHandoff: the bike
// leg finishes and (if the trip continues) the next leg starts as a
// walk from the same point.
func (m *Manager) BikeReachedEnd(w World, tripID ids.TripID, car ids.CarID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	w.Emit(events.BikeStoppedAtSidewalk{Car: car})
	m.advance(w, t)
}

// PedReachedBusStop is called when a walking pedestrian arrives at the
// stop that begins their LegBus leg.
func (m *Manager) PedReachedBusStop(w World, tripID ids.TripID, person ids.PersonID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	w.Emit(events.PedReachedBusStop{Person: person})
	m.advance(w, t)
}

// PedBoardedBus marks the in-progress bus leg as boarded; the leg
// itself completes later via PersonLeftBus once the rider's stop
// arrives.
func (m *Manager) PedBoardedBus(w World, tripID ids.TripID, person ids.PersonID) {
	w.Emit(events.PedBoardedBus{Person: person})
}

// PersonLeftBus completes a LegBus leg once the rider disembarks at
// their stop.
func (m *Manager) PersonLeftBus(w World, tripID ids.TripID, person ids.PersonID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	w.Emit(events.PersonLeftBus{Person: person})
	m.advance(w, t)
}

// CarOrBikeReachedBorder is the callback for EndVanishAtBorder:
// the vehicle simply leaves the simulated area.
func (m *Manager) CarOrBikeReachedBorder(w World, tripID ids.TripID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	m.advance(w, t)
}

// PedReachedBuilding completes a walking leg that ends inside a
// building.
func (m *Manager) PedReachedBuilding(w World, tripID ids.TripID, person ids.PersonID, building ids.BuildingID) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	w.Emit(events.PersonEntersBuilding{Person: person, Building: building})
	m.advance(w, t)
}

// CancelTrip implements spec.md §4.6's cancel_trip: ends the trip
// immediately without running its remaining legs, optionally warping
// an abandoned in-flight vehicle to the nearest free parking spot
// instead of leaving it stranded mid-lane.
func (m *Manager) CancelTrip(w World, tripID ids.TripID, reason CancelReason, abandonedVehicle *ids.CarID, abandonedFrom mapapi.Position) {
	t, ok := m.trips[tripID]
	if !ok {
		return
	}
	if abandonedVehicle != nil {
		w.AbandonVehicle(*abandonedVehicle, abandonedFrom)
	}
	w.Emit(events.TripCancelled{Trip: t.ID, Mode: t.currentMode(), Reason: reason.String()})
	delete(m.trips, t.ID)
	delete(m.delayed, t.ID)
}

// CancelUnstartedTrip cancels a trip that has not yet departed
// (DepartedAt == 0). Idempotent: calling it twice for the same trip is
// a no-op the second time, since the first call already removed the
// trip from m.trips (spec.md §8's idempotence property).
func (m *Manager) CancelUnstartedTrip(w World, tripID ids.TripID) {
	t, ok := m.trips[tripID]
	if !ok || t.DepartedAt != 0 {
		return
	}
	w.Emit(events.TripCancelled{Trip: t.ID, Mode: t.currentMode(), Reason: ReasonAbandonedUnstarted.String()})
	delete(m.trips, t.ID)
	delete(m.delayed, t.ID)
}

func (m *Manager) String() string {
	return fmt.Sprintf("trip.Manager{persons=%d trips=%d delayed=%d}", len(m.persons), len(m.trips), len(m.delayed))
}
