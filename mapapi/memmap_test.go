package mapapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
)

func twoLaneMap() *mapapi.MemMap {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 100, SpeedLimit: 15, VehicleKinds: []ids.VehicleKind{ids.VehicleKindCar}})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 100, SpeedLimit: 15, VehicleKinds: []ids.VehicleKind{ids.VehicleKindCar}})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})
	return m
}

func TestMemMapPathfindSameLane(t *testing.T) {
	m := twoLaneMap()
	path, err := m.Pathfind(mapapi.PathRequest{
		Start:       mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		End:         mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 50},
		VehicleKind: ids.VehicleKindCar,
	})
	require.NoError(t, err)
	assert.Equal(t, []mapapi.Traversable{mapapi.LaneTraversable(1)}, path.Steps)
	assert.Equal(t, mapapi.EndNoDecisionYet, path.EndAction)
}

func TestMemMapPathfindCrossesTurn(t *testing.T) {
	m := twoLaneMap()
	path, err := m.Pathfind(mapapi.PathRequest{
		Start:       mapapi.Position{Traversable: mapapi.LaneTraversable(1), Dist: 0},
		End:         mapapi.Position{Traversable: mapapi.LaneTraversable(2), Dist: 20},
		VehicleKind: ids.VehicleKindCar,
	})
	require.NoError(t, err)
	assert.Equal(t, []mapapi.Traversable{
		mapapi.LaneTraversable(1), mapapi.TurnTraversable(10), mapapi.LaneTraversable(2),
	}, path.Steps)
}

func TestMemMapPathfindRespectsVehicleKind(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 100, VehicleKinds: []ids.VehicleKind{ids.VehicleKindCar}})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 100, VehicleKinds: []ids.VehicleKind{ids.VehicleKindBike}})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2})

	_, err := m.Pathfind(mapapi.PathRequest{
		Start:       mapapi.Position{Traversable: mapapi.LaneTraversable(1)},
		End:         mapapi.Position{Traversable: mapapi.LaneTraversable(2)},
		VehicleKind: ids.VehicleKindCar,
	})
	assert.Error(t, err, "a car must not be routed onto a bike-only lane")
}

func TestMemMapPathfindNoRoute(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 100, VehicleKinds: []ids.VehicleKind{ids.VehicleKindCar}})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 100, VehicleKinds: []ids.VehicleKind{ids.VehicleKindCar}})
	_, err := m.Pathfind(mapapi.PathRequest{
		Start:       mapapi.Position{Traversable: mapapi.LaneTraversable(1)},
		End:         mapapi.Position{Traversable: mapapi.LaneTraversable(2)},
		VehicleKind: ids.VehicleKindCar,
	})
	assert.Error(t, err)
}

func TestMemMapTurnsFromAndInto(t *testing.T) {
	m := twoLaneMap()
	assert.Equal(t, []ids.TurnID{10}, m.TurnsFrom(1))
	assert.Equal(t, []ids.TurnID{10}, m.TurnsInto(2))
	assert.Empty(t, m.TurnsFrom(2))
}

func TestMemMapGetLaneNotFound(t *testing.T) {
	m := mapapi.NewMemMap()
	_, err := m.GetLane(99)
	assert.Error(t, err)
}

func TestLaneInfoAllowsKind(t *testing.T) {
	l := mapapi.LaneInfo{VehicleKinds: []ids.VehicleKind{ids.VehicleKindCar, ids.VehicleKindBus}}
	assert.True(t, l.AllowsKind(ids.VehicleKindCar))
	assert.False(t, l.AllowsKind(ids.VehicleKindBike))
}

func TestTurnInfoConflictsWithTurn(t *testing.T) {
	turn := mapapi.TurnInfo{ID: 1, ConflictsWith: []ids.TurnID{2, 3}}
	assert.True(t, turn.ConflictsWithTurn(2))
	assert.False(t, turn.ConflictsWithTurn(4))
}
