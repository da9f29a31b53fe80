package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
)

// TestEventMarkerCoversEveryVariant locks in that every event struct in
// this package satisfies Event, so a type switch over events.Event
// compiles against the full set without an explicit allow-list here.
func TestEventMarkerCoversEveryVariant(t *testing.T) {
	var all = []events.Event{
		events.TripPhaseStarting{},
		events.TripFinished{},
		events.TripCancelled{},
		events.AgentEntersTraversable{},
		events.PathAmended{},
		events.IntersectionDelayMeasured{},
		events.PersonEntersBuilding{},
		events.PersonLeavesBuilding{},
		events.PersonEntersMap{},
		events.PersonLeavesMap{},
		events.PedReachedParkingSpot{},
		events.CarReachedParkingSpot{},
		events.CarLeftParkingSpot{},
		events.BikeStoppedAtSidewalk{},
		events.PedReachedBusStop{},
		events.PedBoardedBus{},
		events.PersonLeftBus{},
		events.ProblemEncountered{},
		events.Alert{},
	}
	assert.Len(t, all, 19)
}

func TestTripModeString(t *testing.T) {
	assert.Equal(t, "walk", events.ModeWalk.String())
	assert.Equal(t, "drive", events.ModeDrive.String())
	assert.Equal(t, "bike", events.ModeBike.String())
	assert.Equal(t, "ride_bus", events.ModeRideBus.String())
	assert.Equal(t, "unknown", events.TripMode(99).String())
}

func TestProblemString(t *testing.T) {
	assert.Equal(t, "overtake_desired", events.ProblemOvertakeDesired.String())
	assert.Equal(t, "intersection_deadlock_escaped", events.ProblemIntersectionDeadlockEscaped.String())
	assert.Equal(t, "impossible_signal_stage", events.ProblemImpossibleSignalStage.String())
	assert.Equal(t, "unknown_problem", events.Problem(99).String())
}

// TestAgentEntersTraversableCarIsOptional documents the nil-Car
// convention used to distinguish a pedestrian's arrival from a car's.
func TestAgentEntersTraversableCarIsOptional(t *testing.T) {
	carID := ids.CarID{VehicleID: 1}
	forCar := events.AgentEntersTraversable{Time: 1, Car: &carID, Traversable: mapapi.LaneTraversable(1)}
	forPed := events.AgentEntersTraversable{Time: 1, Person: 7, Traversable: mapapi.LaneTraversable(1)}

	assert.NotNil(t, forCar.Car)
	assert.Nil(t, forPed.Car)
}
