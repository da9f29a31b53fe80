// Package mapapi defines the narrow interfaces the core consumes from
// the map-geometry and pathfinding collaborator. Per the spec, map
// geometry and pathfinding themselves are out of scope: this package
// only pins down the shape of the boundary (Lane/Turn/Intersection
// lookups, PathRequest -> Path, traffic-signal plan lookup) and ships
// one reference in-memory implementation (see memmap.go) good enough
// to drive the package tests and the cmd/moss-core standalone runner.
package mapapi

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
)

// TraversableKind distinguishes a Lane from a Turn; both are
// Traversables in the glossary sense (a segment with a length, a speed
// limit, and a queue).
type TraversableKind int

const (
	TraversableLane TraversableKind = iota
	TraversableTurn
)

// Traversable addresses either a lane or a turn without the caller
// needing to know which; queue.Queue is keyed by one of these.
type Traversable struct {
	Kind TraversableKind
	Lane ids.LaneID // valid iff Kind == TraversableLane
	Turn ids.TurnID // valid iff Kind == TraversableTurn
}

func (t Traversable) String() string {
	if t.Kind == TraversableLane {
		return fmt.Sprintf("Lane(%d)", t.Lane)
	}
	return fmt.Sprintf("Turn(%d)", t.Turn)
}

func LaneTraversable(l ids.LaneID) Traversable { return Traversable{Kind: TraversableLane, Lane: l} }
func TurnTraversable(t ids.TurnID) Traversable { return Traversable{Kind: TraversableTurn, Turn: t} }

// LaneInfo is what GetLane returns: a lane's static geometry and
// topology, as provided by the map collaborator.
type LaneInfo struct {
	ID              ids.LaneID
	Length          float64
	SpeedLimit      float64
	VehicleKinds    []ids.VehicleKind // which vehicle kinds may use this lane
	SrcIntersection ids.IntersectionID
	DstIntersection ids.IntersectionID
	IsSidewalk      bool
	ParentRoad      ids.RoadID // 0 if this lane lives inside an intersection
	OffsetInRoad    int        // 0 = leftmost driving lane of ParentRoad
	RoadLaneCount   int        // total driving lanes on ParentRoad, for overtaking-lane lookups
	DrivesOnTheLeft bool       // country driving convention for this road
}

// AllowsKind reports whether a vehicle of the given kind may use this
// lane.
func (l LaneInfo) AllowsKind(k ids.VehicleKind) bool {
	for _, vk := range l.VehicleKinds {
		if vk == k {
			return true
		}
	}
	return false
}

// TurnPriority classifies how a turn is treated by a stop-sign rule or
// a traffic-signal stage. See spec.md §4.4.
type TurnPriority int

const (
	TurnBanned TurnPriority = iota
	TurnYield
	TurnProtected
)

func (p TurnPriority) String() string {
	switch p {
	case TurnBanned:
		return "banned"
	case TurnYield:
		return "yield"
	case TurnProtected:
		return "protected"
	default:
		return "unknown"
	}
}

// TurnInfo is what GetTurn returns: a turn's static geometry and
// conflict relation.
type TurnInfo struct {
	ID               ids.TurnID
	SrcLane          ids.LaneID
	DstLane          ids.LaneID
	ParentIntersect  ids.IntersectionID
	Length           float64 // geometric length of the turn itself
	ConflictsWith    []ids.TurnID
}

// ConflictsWithTurn reports whether this turn geometrically conflicts
// with other (symmetric by construction of the map data).
func (t TurnInfo) ConflictsWithTurn(other ids.TurnID) bool {
	for _, c := range t.ConflictsWith {
		if c == other {
			return true
		}
	}
	return false
}

// IntersectionKind distinguishes the three arbitration policies named
// in spec.md §4.4.
type IntersectionKind int

const (
	IntersectionBorder IntersectionKind = iota
	IntersectionStopSign
	IntersectionSignal
)

// IntersectionInfo is what GetIntersection returns.
type IntersectionInfo struct {
	ID    ids.IntersectionID
	Kind  IntersectionKind
	Roads []ids.RoadID
	// TwoRoadsOnly is true for intersections that connect exactly two
	// roads -- likely OSM merge/split artifacts, exempted from the
	// downstream-room check per spec.md §4.4.
	TwoRoadsOnly bool
	// BlockTheBoxExempt lists intersections on the explicit allow-list
	// also exempted from the downstream-room check.
	BlockTheBoxExempt bool
}

// SignalStageKind distinguishes a fixed-duration stage from a variable
// one that may be extended.
type SignalStageKind int

const (
	StageFixed SignalStageKind = iota
	StageVariable
)

// SignalStage is one stage of a traffic-signal plan: the priority it
// grants to each turn at the intersection, plus its timing rule.
type SignalStage struct {
	PriorityByTurn map[ids.TurnID]TurnPriority
	Kind           SignalStageKind
	// Fixed stages use Duration. Variable stages use MinDuration as the
	// guaranteed minimum, ExtendBy as the increment applied per
	// extension, and MaxExtensions as the extension budget.
	Duration      float64
	MinDuration   float64
	ExtendBy      float64
	MaxExtensions int
}

// TrafficSignalPlan is the full stage program for one intersection.
type TrafficSignalPlan struct {
	Stages []SignalStage
	Offset float64 // phase offset applied at plan activation
}

// PathRequest asks the pathfinder for a route between two traversable
// positions.
type PathRequest struct {
	Start       Position
	End         Position
	VehicleKind ids.VehicleKind
}

// Position is a point along a traversable, or at a building.
type Position struct {
	Traversable Traversable
	Dist        float64
	Building    ids.BuildingID // valid if Traversable is zero-value and Building != 0
}

// EndAction says what a Path wants the driving state machine to do
// once the last step completes. See spec.md §4.3 step 5
// (Queued-at-last-step -> maybe_handle_end).
type EndAction int

const (
	EndVanishAtBorder EndAction = iota
	EndParkOnLane
	EndParkInBuilding
	EndBikeToWalkHandoff
	EndBusAtStop
	EndNoDecisionYet
)

// Path is what the pathfinder returns: an ordered list of traversables
// to cross, plus what to do at the end.
type Path struct {
	Steps     []Traversable
	End       Position
	EndAction EndAction
}

// Map is the full boundary the core consumes from the map/pathfinding
// collaborator. All methods are read-only during simulation; live map
// edits (spec.md §5) go through a separate, narrower mutation surface
// not modeled here since map editing workflows are out of scope.
type Map interface {
	GetLane(id ids.LaneID) (LaneInfo, error)
	GetTurn(id ids.TurnID) (TurnInfo, error)
	GetIntersection(id ids.IntersectionID) (IntersectionInfo, error)
	GetTrafficSignal(i ids.IntersectionID) (TrafficSignalPlan, bool)
	Pathfind(req PathRequest) (Path, error)

	// TurnsFrom lists the turns leading out of a lane, for drivers
	// deciding which turn to request at the head of a queue.
	TurnsFrom(lane ids.LaneID) []ids.TurnID
	// TurnsInto lists the turns whose destination lane is the given
	// lane. The intersection arbiter does not call it: its
	// same-destination check compares the turns' DstLane via GetTurn.
	TurnsInto(lane ids.LaneID) []ids.TurnID
}
