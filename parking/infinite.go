package parking

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/utils/randengine"
)

// Infinite is the parking.Store used when config.Toggles.InfiniteParking
// is set: every lane has unlimited onstreet capacity at a synthetic
// index per parked car, so a PathToFreeParkingSpot search never fails
// for lack of capacity (spec.md §4.5).
type Infinite struct {
	nextIndex map[ids.LaneID]int
	parked    map[ids.ParkingSpotID]ids.CarID
}

// NewInfinite creates an empty infinite store.
func NewInfinite() *Infinite {
	return &Infinite{nextIndex: make(map[ids.LaneID]int), parked: make(map[ids.ParkingSpotID]ids.CarID)}
}

func (in *Infinite) spotID(lane ids.LaneID, idx int) ids.ParkingSpotID {
	return ids.ParkingSpotID{Kind: ids.ParkingSpotOnstreet, OwnerID: int32(lane), Index: idx}
}

// IsFree is always true for an Infinite store except for a spot
// that's already been handed out and still occupied.
func (in *Infinite) IsFree(id ids.ParkingSpotID) bool {
	_, occupied := in.parked[id]
	return !occupied
}

func (in *Infinite) ReserveSpot(id ids.ParkingSpotID, car ids.CarID) bool {
	return in.IsFree(id)
}

func (in *Infinite) UnreserveSpot(id ids.ParkingSpotID) {
	// Nothing to release: an Infinite store never holds a reservation
	// separately from occupancy, since capacity is never scarce.
}

func (in *Infinite) AddParkedCar(id ids.ParkingSpotID, car ids.CarID) {
	if _, occupied := in.parked[id]; occupied {
		panic(fmt.Sprintf("parking: AddParkedCar on already-occupied infinite spot %s", id))
	}
	in.parked[id] = car
}

func (in *Infinite) RemoveParkedCar(id ids.ParkingSpotID) ids.CarID {
	car, ok := in.parked[id]
	if !ok {
		panic(fmt.Sprintf("parking: RemoveParkedCar on spot %s with no parked car", id))
	}
	delete(in.parked, id)
	return car
}

func (in *Infinite) GetCarAtSpot(id ids.ParkingSpotID) (ids.CarID, bool) {
	car, ok := in.parked[id]
	return car, ok
}

// GetAllFreeSpots always returns exactly one fresh, never-yet-assigned
// spot on lane: capacity is unlimited, so there is never a reason to
// enumerate more than the next one.
func (in *Infinite) GetAllFreeSpots(lane ids.LaneID) []Spot {
	idx := in.nextIndex[lane]
	return []Spot{{ID: in.spotID(lane, idx), Lane: lane, SidewalkLane: lane}}
}

func (in *Infinite) SpotToDrivingPos(id ids.ParkingSpotID) (mapapi.Position, error) {
	return mapapi.Position{Traversable: mapapi.LaneTraversable(ids.LaneID(id.OwnerID))}, nil
}

func (in *Infinite) SpotToSidewalkPos(id ids.ParkingSpotID) (mapapi.Position, error) {
	return mapapi.Position{Traversable: mapapi.LaneTraversable(ids.LaneID(id.OwnerID))}, nil
}

func (in *Infinite) PathToFreeParkingSpot(m mapapi.Map, start ids.LaneID, kind ids.VehicleKind, rng *randengine.Engine) (Spot, bool) {
	spot, _, ok := searchForFreeSpot(m, start, rng, in.GetAllFreeSpots)
	if ok {
		in.nextIndex[spot.Lane]++
	}
	return spot, ok
}

func (in *Infinite) EvictSpot(id ids.ParkingSpotID) (ids.CarID, bool) {
	car, ok := in.parked[id]
	if ok {
		delete(in.parked, id)
	}
	return car, ok
}

var _ Store = (*Infinite)(nil)
