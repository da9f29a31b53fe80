// Package parking implements the parking store of spec.md §4.5: a
// shared interface over a finite, capacity-bound implementation and
// an infinite one, plus the bounded-DFS pathfinding helper used to
// find a free spot from a lane. Grounded on the teacher's
// utils/randengine for per-vehicle jitter and on queue's ID-keyed
// arena pattern for spot bookkeeping.
package parking

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/utils/randengine"
)

// Spot is one physical parking location: an onstreet spot along a
// lane, an offstreet building-attached spot, or a dedicated lot spot.
// Exactly the fields relevant to Kind are meaningful (spec.md §9's
// tagged-union guidance).
type Spot struct {
	ID ids.ParkingSpotID
	// Lane/Dist locate an onstreet spot's driving position.
	Lane ids.LaneID
	Dist float64
	// Building names the owning building for an offstreet spot.
	Building ids.BuildingID
	// SidewalkLane/SidewalkDist is where a pedestrian accesses this
	// spot from, for spot_to_sidewalk_pos.
	SidewalkLane ids.LaneID
	SidewalkDist float64
}

// Store is the shared interface both implementations satisfy (spec.md
// §4.5's "shared operations").
type Store interface {
	IsFree(id ids.ParkingSpotID) bool
	ReserveSpot(id ids.ParkingSpotID, car ids.CarID) bool
	UnreserveSpot(id ids.ParkingSpotID)
	AddParkedCar(id ids.ParkingSpotID, car ids.CarID)
	RemoveParkedCar(id ids.ParkingSpotID) ids.CarID
	GetCarAtSpot(id ids.ParkingSpotID) (ids.CarID, bool)
	GetAllFreeSpots(lane ids.LaneID) []Spot
	SpotToDrivingPos(id ids.ParkingSpotID) (mapapi.Position, error)
	SpotToSidewalkPos(id ids.ParkingSpotID) (mapapi.Position, error)
	// PathToFreeParkingSpot runs the bounded-DFS search of spec.md
	// §4.5 outward from start, jittered per-vehicle by rng so that
	// concurrent searches from the same lane don't all converge on the
	// same spot.
	PathToFreeParkingSpot(m mapapi.Map, start ids.LaneID, kind ids.VehicleKind, rng *randengine.Engine) (Spot, bool)
	// EvictSpot forcibly frees a spot whose underlying lane/building
	// was removed by a live map edit (spec.md §5), returning the
	// evicted car if one was parked there.
	EvictSpot(id ids.ParkingSpotID) (ids.CarID, bool)
}

// maxSearchHops bounds the bounded-DFS search of PathToFreeParkingSpot
// so a sim with no free parking anywhere fails fast instead of
// wandering the whole map.
const maxSearchHops = 40

// searchForFreeSpot is shared by the finite and infinite
// implementations: a bounded DFS over the lane graph (via
// m.TurnsFrom/GetTurn) that stops at the first lane visited with a
// free spot and returns one of that lane's free spots. Each lane's
// outgoing turns are explored in an order shuffled by the per-vehicle
// rng, so different cars explore different routes.
func searchForFreeSpot(m mapapi.Map, start ids.LaneID, rng *randengine.Engine, freeSpotsOnLane func(ids.LaneID) []Spot) (Spot, []ids.LaneID, bool) {
	type frame struct {
		lane ids.LaneID
		hop  int
	}
	visited := map[ids.LaneID]bool{start: true}
	stack := []frame{{lane: start, hop: 0}}
	var path []ids.LaneID

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		path = append(path, top.lane)

		if spots := freeSpotsOnLane(top.lane); len(spots) > 0 {
			return spots[rng.Intn(len(spots))], path, true
		}
		if top.hop >= maxSearchHops {
			continue
		}
		turns := append([]ids.TurnID(nil), m.TurnsFrom(top.lane)...)
		rng.Shuffle(len(turns), func(i, j int) { turns[i], turns[j] = turns[j], turns[i] })
		for _, t := range turns {
			info, err := m.GetTurn(t)
			if err != nil || visited[info.DstLane] {
				continue
			}
			visited[info.DstLane] = true
			stack = append(stack, frame{lane: info.DstLane, hop: top.hop + 1})
		}
	}
	return Spot{}, nil, false
}

func errSpotNotFound(id ids.ParkingSpotID) error {
	return fmt.Errorf("parking: spot %s not found", id)
}
