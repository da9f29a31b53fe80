package sim

import (
	"github.com/fiblab-sim/moss-core/driving"
	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/trip"
	"github.com/fiblab-sim/moss-core/utils/randengine"
)

// RegisterPerson adds a traveler and schedules their first trip.
func (s *Sim) RegisterPerson(p *trip.Person) { s.trips.AddPerson(s, p) }

// RunStartTrip dispatches a scheduler.StartTrip command.
func (s *Sim) RunStartTrip(tripID ids.TripID) { s.trips.StartTrip(s, tripID) }

// SpawnCarLeg implements trip.World: resolves the leg's path and
// pushes a SpawnCar command, or returns ok=false if no path exists yet
// (a transient failure the trip manager retries).
func (s *Sim) SpawnCarLeg(t *trip.Trip, leg trip.Leg) bool {
	kind := ids.VehicleKindCar
	if leg.Mode == trip.LegBike {
		kind = ids.VehicleKindBike
	}
	path, err := s.mp.Pathfind(mapapi.PathRequest{Start: leg.From, End: leg.To, VehicleKind: kind})
	if err != nil {
		return false
	}
	car := leg.Vehicle
	if car.VehicleID == 0 {
		car = ids.CarID{VehicleID: ids.VehicleID(int64(t.ID)<<8 | int64(t.LegIdx)), Kind: kind}
	}
	s.sched.Push(s.Now(), scheduler.SpawnCar{Car: car, Trip: t.ID, Start: leg.From, Path: path, RetryOnFailure: true})
	return true
}

// SpawnPedLeg implements trip.World analogously for a walking leg. The
// walking simulator itself is an external collaborator (spec.md §1);
// the core only tracks the SpawnPed wakeup.
func (s *Sim) SpawnPedLeg(t *trip.Trip, leg trip.Leg) bool {
	path, err := s.mp.Pathfind(mapapi.PathRequest{Start: leg.From, End: leg.To, VehicleKind: ids.VehicleKindCar})
	if err != nil {
		return false
	}
	s.sched.Push(s.Now(), scheduler.SpawnPed{Person: t.Person, Trip: t.ID, Start: leg.From, Path: path})
	return true
}

// StartBusLeg implements trip.World for a LegBus leg: the actual
// transit vehicle is owned by the bus-route collaborator, so the trip
// manager only needs the boarding/alighting callbacks to fire at the
// right times, which for a standalone core run happen immediately.
func (s *Sim) StartBusLeg(t *trip.Trip, leg trip.Leg) bool {
	s.trips.PedBoardedBus(s, t.ID, t.Person)
	return true
}

// AbandonVehicle implements trip.World's CancelTrip hook: removes the
// car from whatever queue it currently occupies and drops it from the
// live car table without running the rest of the driving state
// machine, then warps it to the nearest free parking spot reachable
// from from, matching spec.md §8's "parking cancellation warp"
// scenario. A car abandoned mid-turn has no parking of its own, so the
// search starts from the turn's destination lane instead.
func (s *Sim) AbandonVehicle(car ids.CarID, from mapapi.Position) {
	c, ok := s.cars[car]
	if !ok {
		return
	}
	startLane := from.Traversable.Lane
	if from.Traversable.Kind == mapapi.TraversableTurn {
		if info, err := s.mp.GetTurn(from.Traversable.Turn); err == nil {
			startLane = info.DstLane
		}
	}

	q := s.Queue(c.Current)
	q.RemoveMember(queue.MemberID{Kind: queue.MemberCar, Car: car})
	delete(s.cars, car)
	s.mx.ActiveCars.Dec()

	if s.parking == nil {
		return
	}
	spot, ok := s.parking.PathToFreeParkingSpot(s.mp, startLane, car.Kind, c.Rand)
	if !ok || !s.parking.ReserveSpot(spot.ID, car) {
		return
	}
	s.parking.AddParkedCar(spot.ID, car)
	s.Emit(events.CarReachedParkingSpot{Car: car, Spot: spot.ID})
}

// RunSpawnCar handles a scheduler.SpawnCar command: tries to insert
// the new car at its start position in its starting lane's queue (a
// start closer to the lane's beginning than the car's length is
// admitted as if its front were at that length), retrying later
// on transient failure or cancelling the trip on a terminal one
// (spec.md §7's Spawn failure classification).
func (s *Sim) RunSpawnCar(cmd scheduler.SpawnCar) {
	start := mapapi.LaneTraversable(cmd.Start.Traversable.Lane)
	q := s.Queue(start)
	lane, err := s.mp.GetLane(cmd.Start.Traversable.Lane)
	if err != nil {
		s.trips.CancelTrip(s, cmd.Trip, trip.ReasonPathfindingFailed, nil, mapapi.Position{})
		return
	}
	length := 5.0
	idx, ok := q.GetIdxToInsertCar(maxFloat(cmd.Start.Dist, length), length, s.Now())
	if !ok {
		if cmd.RetryOnFailure {
			s.ScheduleRetry(cmd, s.cfg.Tunables.BlindRetryToCreepForwards)
			return
		}
		s.trips.CancelTrip(s, cmd.Trip, trip.ReasonPathfindingFailed, nil, mapapi.Position{})
		return
	}

	speed := lane.SpeedLimit
	c := &driving.Car{
		ID:       cmd.Car,
		Length:   length,
		MaxSpeed: speed,
		Trip:     cmd.Trip,
		Current:  start,
		Path:     cmd.Path,
		State:    driving.State{Kind: driving.Crossing, TimeInterval: driving.Interval{Start: s.Now(), End: s.Now() + (lane.Length-cmd.Start.Dist)/maxFloat(speed, 0.01)}, DistInterval: driving.Interval{Start: cmd.Start.Dist, End: lane.Length}},
		Rand:     randengine.New(uint64(cmd.Car.VehicleID)),
	}
	q.InsertCarAtIdx(idx, c.AsMember())
	s.cars[c.ID] = c
	s.mx.ActiveCars.Inc()
	s.sched.Push(c.State.TimeInterval.End, scheduler.UpdateCar{Car: c.ID})
	s.Emit(events.AgentEntersTraversable{Time: s.Now(), Car: &c.ID, Person: personForTrip(s, cmd.Trip), Traversable: start})
}

// ReserveParkingSpot implements driving.World: runs the parking store's
// bounded-DFS search outward from the car's current lane and reserves
// whatever spot it finds, or ok=false if the search turned up nothing
// (the caller retries via the blind-retry path, spec.md §4.5).
func (s *Sim) ReserveParkingSpot(c *driving.Car) (ids.ParkingSpotID, bool) {
	if s.parking == nil || c.Current.Kind != mapapi.TraversableLane {
		return ids.ParkingSpotID{}, false
	}
	spot, ok := s.parking.PathToFreeParkingSpot(s.mp, c.Current.Lane, c.ID.Kind, c.Rand)
	if !ok {
		return ids.ParkingSpotID{}, false
	}
	if !s.parking.ReserveSpot(spot.ID, c.ID) {
		return ids.ParkingSpotID{}, false
	}
	return spot.ID, true
}

func personForTrip(s *Sim, tripID ids.TripID) ids.PersonID {
	if t := s.trips.Trip(tripID); t != nil {
		return t.Person
	}
	return 0
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// EndDrivingLeg implements driving.World: removes the car from the
// live table and its current queue, then routes to the matching
// trip-manager leg-completion callback per spec.md §4.6.
func (s *Sim) EndDrivingLeg(c *driving.Car, action mapapi.EndAction) {
	q := s.Queue(c.Current)
	q.RemoveMember(queue.MemberID{Kind: queue.MemberCar, Car: c.ID})
	delete(s.cars, c.ID)
	s.mx.ActiveCars.Dec()

	switch action {
	case mapapi.EndVanishAtBorder:
		s.trips.CarOrBikeReachedBorder(s, c.Trip)
	case mapapi.EndParkOnLane, mapapi.EndParkInBuilding:
		if s.parking != nil {
			s.parking.AddParkedCar(c.State.Spot, c.ID)
		}
		s.trips.CarReachedParkingSpot(s, c.Trip, c.ID, c.State.Spot)
	case mapapi.EndBikeToWalkHandoff:
		s.trips.BikeReachedEnd(s, c.Trip, c.ID)
	case mapapi.EndBusAtStop:
		// Buses don't end their own trip leg this way; riders complete
		// their leg via trip.Manager.PersonLeftBus instead.
	}
}
