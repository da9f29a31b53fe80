package parking

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/utils/randengine"
)

// slot tracks one registered spot's live state: who's parked there (if
// anyone), and who has it reserved (a car en route but not yet
// arrived -- reservation and occupancy are distinct per spec.md §4.5
// so a second car can't target a spot that's already spoken for).
type slot struct {
	spot     Spot
	parked   *ids.CarID
	reserved *ids.CarID
}

// Finite is the capacity-bound parking.Store: every spot is
// individually registered ahead of time (typically from the map
// collaborator's onstreet/offstreet inventory) and can run out.
type Finite struct {
	byID map[ids.ParkingSpotID]*slot
	// byLane indexes onstreet spots for GetAllFreeSpots and the
	// bounded-DFS search.
	byLane map[ids.LaneID][]ids.ParkingSpotID
}

// NewFinite creates an empty finite store. Call Register for every
// spot the map collaborator reports before the sim starts.
func NewFinite() *Finite {
	return &Finite{byID: make(map[ids.ParkingSpotID]*slot), byLane: make(map[ids.LaneID][]ids.ParkingSpotID)}
}

// Register adds a spot to the store's inventory, unoccupied and
// unreserved.
func (f *Finite) Register(s Spot) {
	f.byID[s.ID] = &slot{spot: s}
	if s.Lane != 0 {
		f.byLane[s.Lane] = append(f.byLane[s.Lane], s.ID)
	}
}

func (f *Finite) IsFree(id ids.ParkingSpotID) bool {
	sl, ok := f.byID[id]
	return ok && sl.parked == nil && sl.reserved == nil
}

func (f *Finite) ReserveSpot(id ids.ParkingSpotID, car ids.CarID) bool {
	sl, ok := f.byID[id]
	if !ok || sl.parked != nil || sl.reserved != nil {
		return false
	}
	c := car
	sl.reserved = &c
	return true
}

func (f *Finite) UnreserveSpot(id ids.ParkingSpotID) {
	sl, ok := f.byID[id]
	if !ok || sl.reserved == nil {
		panic(fmt.Sprintf("parking: UnreserveSpot of spot %s with no reservation", id))
	}
	sl.reserved = nil
}

func (f *Finite) AddParkedCar(id ids.ParkingSpotID, car ids.CarID) {
	sl, ok := f.byID[id]
	if !ok {
		panic(fmt.Sprintf("parking: AddParkedCar on unknown spot %s", id))
	}
	sl.reserved = nil
	c := car
	sl.parked = &c
}

func (f *Finite) RemoveParkedCar(id ids.ParkingSpotID) ids.CarID {
	sl, ok := f.byID[id]
	if !ok || sl.parked == nil {
		panic(fmt.Sprintf("parking: RemoveParkedCar on spot %s with no parked car", id))
	}
	car := *sl.parked
	sl.parked = nil
	return car
}

func (f *Finite) GetCarAtSpot(id ids.ParkingSpotID) (ids.CarID, bool) {
	sl, ok := f.byID[id]
	if !ok || sl.parked == nil {
		return ids.CarID{}, false
	}
	return *sl.parked, true
}

func (f *Finite) GetAllFreeSpots(lane ids.LaneID) []Spot {
	var out []Spot
	for _, id := range f.byLane[lane] {
		if f.IsFree(id) {
			out = append(out, f.byID[id].spot)
		}
	}
	return out
}

func (f *Finite) SpotToDrivingPos(id ids.ParkingSpotID) (mapapi.Position, error) {
	sl, ok := f.byID[id]
	if !ok {
		return mapapi.Position{}, errSpotNotFound(id)
	}
	return mapapi.Position{Traversable: mapapi.LaneTraversable(sl.spot.Lane), Dist: sl.spot.Dist}, nil
}

func (f *Finite) SpotToSidewalkPos(id ids.ParkingSpotID) (mapapi.Position, error) {
	sl, ok := f.byID[id]
	if !ok {
		return mapapi.Position{}, errSpotNotFound(id)
	}
	return mapapi.Position{Traversable: mapapi.LaneTraversable(sl.spot.SidewalkLane), Dist: sl.spot.SidewalkDist}, nil
}

func (f *Finite) PathToFreeParkingSpot(m mapapi.Map, start ids.LaneID, kind ids.VehicleKind, rng *randengine.Engine) (Spot, bool) {
	spot, _, ok := searchForFreeSpot(m, start, rng, f.GetAllFreeSpots)
	return spot, ok
}

func (f *Finite) EvictSpot(id ids.ParkingSpotID) (ids.CarID, bool) {
	sl, ok := f.byID[id]
	if !ok {
		return ids.CarID{}, false
	}
	sl.reserved = nil
	if sl.parked == nil {
		return ids.CarID{}, false
	}
	car := *sl.parked
	sl.parked = nil
	return car, true
}

var _ Store = (*Finite)(nil)
