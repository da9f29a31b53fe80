package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/parking"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/sim"
	"github.com/fiblab-sim/moss-core/utils/config"
)

// recorder collects every event a Sim emits, in emission order, for
// scenario assertions below.
type recorder struct {
	events []events.Event
}

func (r *recorder) attach(s *sim.Sim) { s.OnEvent(func(e events.Event) { r.events = append(r.events, e) }) }

func (r *recorder) find(pred func(events.Event) bool) (events.Event, bool) {
	for _, e := range r.events {
		if pred(e) {
			return e, true
		}
	}
	return nil, false
}

func longRun(totalSeconds float64) config.Config {
	return config.Config{
		Step:    config.ControlStep{TotalSeconds: totalSeconds},
		Toggles: config.Toggles{DontBlockTheBox: true},
	}
}

// TestScenarioSingleDriverStraightPathVanishesAtBorder is spec.md §8's
// simplest end-to-end case: one car, one turn, no contention, leaving
// via the map border. mapapi.MemMap.Pathfind never produces
// EndVanishAtBorder (it resolves a same-lane request to
// EndNoDecisionYet and any other to a parking end action), so
// this pushes a hand-built SpawnCar command instead of going through
// RegisterPerson/Pathfind.
func TestScenarioSingleDriverStraightPathVanishesAtBorder(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 100, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 100, SpeedLimit: 10})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2, ParentIntersect: 100, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionBorder})

	s := sim.New(longRun(1000), m, parking.NewInfinite())
	var rec recorder
	rec.attach(s)

	car := ids.CarID{VehicleID: 1}
	path := mapapi.Path{
		Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(2)},
		End:       mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 100},
		EndAction: mapapi.EndVanishAtBorder,
	}
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   car,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		Path:  path,
	})

	s.Run()

	assert.Nil(t, s.Car(car), "the car must have left the live table once it vanished at the border")
	_, enteredTurn := rec.find(func(e events.Event) bool {
		ev, ok := e.(events.AgentEntersTraversable)
		return ok && ev.Traversable == mapapi.TurnTraversable(10)
	})
	assert.True(t, enteredTurn, "the car must have crossed the turn on its way to the border")
	assert.Equal(t, 0, s.Queue(mapapi.LaneTraversable(2)).Len(), "a vanished car leaves no trace in its final lane's queue")
}

// TestScenarioHeadOfLineStopSignSoloCarEventuallyCrosses is spec.md
// §8's stop-sign scenario with no competing traffic: a lone car's
// first request must wait WaitAtStopSign, and -- since nothing else
// will ever call FinishTurn or UpdateIntersection to re-check it --
// the arbiter itself must self-schedule the retry once that wait
// elapses.
func TestScenarioHeadOfLineStopSignSoloCarEventuallyCrosses(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 20, SpeedLimit: 10})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2, ParentIntersect: 100, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})

	s := sim.New(longRun(60), m, parking.NewInfinite())
	var rec recorder
	rec.attach(s)

	car := ids.CarID{VehicleID: 1}
	path := mapapi.Path{
		Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(2)},
		End:       mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 20},
		EndAction: mapapi.EndVanishAtBorder,
	}
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   car,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		Path:  path,
	})

	s.Run()

	ev, ok := rec.find(func(e events.Event) bool {
		a, ok := e.(events.AgentEntersTraversable)
		return ok && a.Traversable == mapapi.TurnTraversable(10)
	})
	require.True(t, ok, "a solo car at a stop sign must still eventually be granted the turn")

	laneCrossTime := 20.0 / 10.0 // lane 1's Length / SpeedLimit
	entersTurnAt := ev.(events.AgentEntersTraversable).Time
	rc := config.NewRuntimeConfig(config.Config{})
	assert.GreaterOrEqual(t, entersTurnAt, laneCrossTime+rc.Tunables.WaitAtStopSign-1e-6,
		"the turn must not be granted before the stop-sign wait elapses")
	assert.Nil(t, s.Car(car))
}

// TestScenarioConflictingUnprotectedLeftYieldsToRightOfWay is spec.md
// §8's conflicting-unprotected-left case: two cars approach the same
// stop-sign intersection on turns that conflict (but don't share a
// destination, so the deadlock-escape path never fires). Whichever
// car is accepted first must fully clear the turn before the other is
// ever granted it.
func TestScenarioConflictingUnprotectedLeftYieldsToRightOfWay(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 3, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 4, Length: 20, SpeedLimit: 10})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 3, ParentIntersect: 100, Length: 5})
	m.AddTurn(mapapi.TurnInfo{ID: 20, SrcLane: 2, DstLane: 4, ParentIntersect: 100, Length: 5, ConflictsWith: []ids.TurnID{10}})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})

	s := sim.New(longRun(60), m, parking.NewInfinite())
	var rec recorder
	rec.attach(s)

	carA := ids.CarID{VehicleID: 1}
	carB := ids.CarID{VehicleID: 2}
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   carA,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		Path: mapapi.Path{
			Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(3)},
			End:       mapapi.Position{Traversable: mapapi.LaneTraversable(3), Dist: 20},
			EndAction: mapapi.EndVanishAtBorder,
		},
	})
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   carB,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 0},
		Path: mapapi.Path{
			Steps:     []mapapi.Traversable{mapapi.LaneTraversable(2), mapapi.TurnTraversable(20), mapapi.LaneTraversable(4)},
			End:       mapapi.Position{Traversable: mapapi.LaneTraversable(4), Dist: 20},
			EndAction: mapapi.EndVanishAtBorder,
		},
	})

	s.Run()

	aEnters, aok := rec.find(func(e events.Event) bool {
		ev, ok := e.(events.AgentEntersTraversable)
		return ok && ev.Traversable == mapapi.TurnTraversable(10)
	})
	bEnters, bok := rec.find(func(e events.Event) bool {
		ev, ok := e.(events.AgentEntersTraversable)
		return ok && ev.Traversable == mapapi.TurnTraversable(20)
	})
	require.True(t, aok)
	require.True(t, bok)
	// Whichever turn was granted first, the loser's own entry time must
	// be no earlier than the winner's exit (entry + cross time) -- the
	// two turns, being in conflict, can never overlap in time.
	turnCrossTime := 5.0 / 10.0
	first, second := aEnters.(events.AgentEntersTraversable), bEnters.(events.AgentEntersTraversable)
	if second.Time < first.Time {
		first, second = second, first
	}
	assert.GreaterOrEqual(t, second.Time, first.Time+turnCrossTime-1e-6,
		"a conflicting turn must never be granted while the other is still mid-crossing")
	assert.Nil(t, s.Car(carA))
	assert.Nil(t, s.Car(carB))
}

// TestScenarioBlockTheBoxPreventsEntryWithNoDownstreamRoom is spec.md
// §8's block-the-box scenario: DontBlockTheBox must deny a turn whose
// destination lane has no spare capacity, even though nothing else
// about the request is in conflict. This only asserts the prevention
// itself (the car stays put); nothing in the system currently wakes a
// request denied for this reason once room frees up, a documented
// limitation rather than a recovery path this scenario exercises.
func TestScenarioBlockTheBoxPreventsEntryWithNoDownstreamRoom(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 10, SpeedLimit: 10})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2, ParentIntersect: 100, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})

	s := sim.New(longRun(60), m, parking.NewInfinite())

	// Fill lane 2's reservable capacity before the approaching car ever
	// requests turn 10: two reservations of 5m each exactly exhaust its
	// 10m length, so a third (the turn's own block-the-box check) has
	// nowhere left to fit.
	downstream := s.Queue(mapapi.LaneTraversable(2))
	downstream.TryToReserveEntry(5, false)
	downstream.TryToReserveEntry(5, false)

	car := ids.CarID{VehicleID: 1}
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   car,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		Path: mapapi.Path{
			Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(2)},
			End:       mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 10},
			EndAction: mapapi.EndVanishAtBorder,
		},
	})

	s.Run()

	require.NotNil(t, s.Car(car), "the car must still be live: it was never granted the turn")
	assert.Equal(t, mapapi.LaneTraversable(1), s.Car(car).Current, "without downstream room the car must never have entered the turn")
}

// TestScenarioDeadlockCycleBreak is spec.md §8's deadlock scenario:
// two cars request mutually conflicting turns to different
// destinations at the same instant, each becoming the other's
// blocker. With BreakTurnConflictCycles on, the cycle must be broken
// rather than leaving both cars denied forever.
func TestScenarioDeadlockCycleBreak(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 3, Length: 20, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 4, Length: 20, SpeedLimit: 10})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 3, ParentIntersect: 100, Length: 5})
	m.AddTurn(mapapi.TurnInfo{ID: 20, SrcLane: 2, DstLane: 4, ParentIntersect: 100, Length: 5, ConflictsWith: []ids.TurnID{10}})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})

	cfg := longRun(60)
	cfg.Toggles.BreakTurnConflictCycles = true
	s := sim.New(cfg, m, parking.NewInfinite())
	var rec recorder
	rec.attach(s)

	carA := ids.CarID{VehicleID: 1}
	carB := ids.CarID{VehicleID: 2}
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   carA,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		Path: mapapi.Path{
			Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(3)},
			End:       mapapi.Position{Traversable: mapapi.LaneTraversable(3), Dist: 20},
			EndAction: mapapi.EndVanishAtBorder,
		},
	})
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   carB,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 0},
		Path: mapapi.Path{
			Steps:     []mapapi.Traversable{mapapi.LaneTraversable(2), mapapi.TurnTraversable(20), mapapi.LaneTraversable(4)},
			End:       mapapi.Position{Traversable: mapapi.LaneTraversable(4), Dist: 20},
			EndAction: mapapi.EndVanishAtBorder,
		},
	})

	s.Run()

	assert.Nil(t, s.Car(carA), "car A must have escaped the conflict cycle rather than deadlocking")
	assert.Nil(t, s.Car(carB), "car B must have escaped the conflict cycle rather than deadlocking")
	_, escaped := rec.find(func(e events.Event) bool {
		p, ok := e.(events.ProblemEncountered)
		return ok && p.Problem == events.ProblemIntersectionDeadlockEscaped
	})
	assert.True(t, escaped, "the cycle-break must be reported via ProblemEncountered")
}

// TestScenarioParkingCancellationWarp is spec.md §8's cancellation
// scenario: a driving leg that gets cancelled mid-route must warp its
// vehicle to the nearest free parking spot reachable from where it
// was, rather than leaving it stranded mid-lane.
func TestScenarioParkingCancellationWarp(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 100, SpeedLimit: 10})

	ps := parking.NewFinite()
	spot := ids.ParkingSpotID{Kind: ids.ParkingSpotOnstreet, OwnerID: 1, Index: 0}
	ps.Register(parking.Spot{ID: spot, Lane: 1, Dist: 50})

	s := sim.New(longRun(60), m, ps)
	var rec recorder
	rec.attach(s)

	car := ids.CarID{VehicleID: 1}
	s.Scheduler().Push(0, scheduler.SpawnCar{
		Car:   car,
		Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		Path: mapapi.Path{
			Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1)},
			End:       mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 100},
			EndAction: mapapi.EndParkOnLane,
		},
	})
	// Pop just the SpawnCar so the car exists in the live table, without
	// letting it run its own route to completion first.
	cmd, at, ok := s.Scheduler().Pop()
	require.True(t, ok)
	_ = at
	sc, ok := cmd.(scheduler.SpawnCar)
	require.True(t, ok)
	s.RunSpawnCar(sc)
	require.NotNil(t, s.Car(car))

	s.AbandonVehicle(car, mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 10})

	assert.Nil(t, s.Car(car), "an abandoned car must leave the live table")
	assert.Equal(t, 0, s.Queue(mapapi.LaneTraversable(1)).Len(), "an abandoned car must leave no trace in its lane's queue")
	assert.False(t, ps.IsFree(spot), "the warp must reserve and occupy the parking spot it found")
	parkedCar, ok := ps.GetCarAtSpot(spot)
	require.True(t, ok)
	assert.Equal(t, car, parkedCar)

	_, warped := rec.find(func(e events.Event) bool {
		ev, ok := e.(events.CarReachedParkingSpot)
		return ok && ev.Car == car && ev.Spot == spot
	})
	assert.True(t, warped, "the warp must be reported the same way a normal parking arrival is")
}

// TestInvariantsHoldThroughoutAMultiCarRun exercises spec.md §8's
// quantified properties (following-distance clearance, no car
// orphaned outside every queue) continuously across a busier run
// rather than only at its end, via the periodic Callback command.
func TestInvariantsHoldThroughoutAMultiCarRun(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 200, SpeedLimit: 10})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 200, SpeedLimit: 10})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2, ParentIntersect: 100, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})

	s := sim.New(longRun(120), m, parking.NewInfinite())
	s.Scheduler().Push(1, scheduler.Callback{Subject: 1, Frequency: 1})

	for i := int64(1); i <= 5; i++ {
		car := ids.CarID{VehicleID: ids.VehicleID(i)}
		s.Scheduler().Push(float64(i), scheduler.SpawnCar{
			Car:   car,
			Start: mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
			Path: mapapi.Path{
				Steps:     []mapapi.Traversable{mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(2)},
				End:       mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 200},
				EndAction: mapapi.EndVanishAtBorder,
			},
			RetryOnFailure: true,
		})
	}

	assert.NotPanics(t, func() { s.Run() }, "no invariant violation must panic across the run")
}
