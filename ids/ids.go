// Package ids defines the opaque integer handle types used to refer to
// simulation entities across package boundaries. Every cross-entity
// reference in the core (car -> queue, queue -> intersection, trip ->
// car, ...) goes through one of these handles and is resolved against
// the owning sim.Sim at use time; no entity struct stores a pointer to
// another.
package ids

import "fmt"

// VehicleKind tags what kind of vehicle a CarID refers to. Lookup
// equality on CarID ignores Kind: two CarIDs with the same numeric
// value but different Kind compare equal, since the numeric value
// alone is unique per vehicle.
type VehicleKind int

const (
	VehicleKindCar VehicleKind = iota
	VehicleKindBike
	VehicleKindBus
	VehicleKindTrain
)

func (k VehicleKind) String() string {
	switch k {
	case VehicleKindCar:
		return "car"
	case VehicleKindBike:
		return "bike"
	case VehicleKindBus:
		return "bus"
	case VehicleKindTrain:
		return "train"
	default:
		return fmt.Sprintf("VehicleKind(%d)", int(k))
	}
}

// VehicleID uniquely identifies a Vehicle regardless of kind.
type VehicleID int64

// CarID identifies an active vehicle (a driving agent). Kind is
// carried for convenience (so a caller doesn't need a lookup just to
// know what kind of thing it's dealing with). Kind is part of the
// struct value, so two CarIDs that differ only in Kind compare unequal
// with == and are distinct map keys.
type CarID struct {
	VehicleID VehicleID
	Kind      VehicleKind
}

func (c CarID) String() string {
	return fmt.Sprintf("%s#%d", c.Kind, c.VehicleID)
}

// Equal ignores Kind by construction: VehicleID alone determines
// identity.
func (c CarID) Equal(other CarID) bool {
	return c.VehicleID == other.VehicleID
}

type PersonID int64

type TripID int64

// LaneID and TurnID are the two Traversable kinds (see mapapi).
type LaneID int32

type TurnID int32

type IntersectionID int32

type RoadID int32

type BuildingID int32

// ParkingSpotKind distinguishes the three tagged-union members of a
// parking.Spot.
type ParkingSpotKind int

const (
	ParkingSpotOnstreet ParkingSpotKind = iota
	ParkingSpotOffstreet
	ParkingSpotLot
)

// ParkingSpotID identifies a parking spot by kind + owning lane/
// building/lot id + index within it.
type ParkingSpotID struct {
	Kind  ParkingSpotKind
	OwnerID int32
	Index   int
}

func (p ParkingSpotID) String() string {
	var kind string
	switch p.Kind {
	case ParkingSpotOnstreet:
		kind = "onstreet"
	case ParkingSpotOffstreet:
		kind = "offstreet"
	case ParkingSpotLot:
		kind = "lot"
	}
	return fmt.Sprintf("%s-spot(%d,%d)", kind, p.OwnerID, p.Index)
}
