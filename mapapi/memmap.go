package mapapi

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/ids"
)

// MemMap is an in-memory reference implementation of Map. It exists so
// the core's packages and the cmd/moss-core standalone runner can be
// exercised without a real map/pathfinding service: callers build one
// with NewMemMap and then populate it with AddLane/AddTurn/
// AddIntersection/SetSignal before handing it to sim.New. Pathfind
// implements a plain breadth-first search over the lane/turn graph
// rather than anything resembling real routing, since pathfinding
// itself is out of the core's scope (spec.md §1).
type MemMap struct {
	lanes         map[ids.LaneID]LaneInfo
	turns         map[ids.TurnID]TurnInfo
	intersections map[ids.IntersectionID]IntersectionInfo
	signals       map[ids.IntersectionID]TrafficSignalPlan
	turnsFrom     map[ids.LaneID][]ids.TurnID
	turnsInto     map[ids.LaneID][]ids.TurnID
}

// NewMemMap creates an empty in-memory map; populate it with the
// Add*/Set* methods before use.
func NewMemMap() *MemMap {
	return &MemMap{
		lanes:         make(map[ids.LaneID]LaneInfo),
		turns:         make(map[ids.TurnID]TurnInfo),
		intersections: make(map[ids.IntersectionID]IntersectionInfo),
		signals:       make(map[ids.IntersectionID]TrafficSignalPlan),
		turnsFrom:     make(map[ids.LaneID][]ids.TurnID),
		turnsInto:     make(map[ids.LaneID][]ids.TurnID),
	}
}

func (m *MemMap) AddLane(l LaneInfo) { m.lanes[l.ID] = l }

func (m *MemMap) AddTurn(t TurnInfo) {
	m.turns[t.ID] = t
	m.turnsFrom[t.SrcLane] = append(m.turnsFrom[t.SrcLane], t.ID)
	m.turnsInto[t.DstLane] = append(m.turnsInto[t.DstLane], t.ID)
}

func (m *MemMap) AddIntersection(i IntersectionInfo) { m.intersections[i.ID] = i }

func (m *MemMap) SetSignal(i ids.IntersectionID, plan TrafficSignalPlan) { m.signals[i] = plan }

func (m *MemMap) GetLane(id ids.LaneID) (LaneInfo, error) {
	l, ok := m.lanes[id]
	if !ok {
		return LaneInfo{}, fmt.Errorf("mapapi: no lane %d", id)
	}
	return l, nil
}

func (m *MemMap) GetTurn(id ids.TurnID) (TurnInfo, error) {
	t, ok := m.turns[id]
	if !ok {
		return TurnInfo{}, fmt.Errorf("mapapi: no turn %d", id)
	}
	return t, nil
}

func (m *MemMap) GetIntersection(id ids.IntersectionID) (IntersectionInfo, error) {
	i, ok := m.intersections[id]
	if !ok {
		return IntersectionInfo{}, fmt.Errorf("mapapi: no intersection %d", id)
	}
	return i, nil
}

func (m *MemMap) GetTrafficSignal(i ids.IntersectionID) (TrafficSignalPlan, bool) {
	plan, ok := m.signals[i]
	return plan, ok
}

func (m *MemMap) TurnsFrom(lane ids.LaneID) []ids.TurnID { return m.turnsFrom[lane] }
func (m *MemMap) TurnsInto(lane ids.LaneID) []ids.TurnID { return m.turnsInto[lane] }

// bfsNode tracks one step of the breadth-first search used by Pathfind.
type bfsNode struct {
	traversable Traversable
	prev        *bfsNode
}

// Pathfind performs an unweighted BFS over the lane->turn->lane graph
// from req.Start.Traversable.Lane to req.End.Traversable.Lane. It is a
// placeholder for the real pathfinder spec.md excludes; it is enough
// to drive deterministic scenario tests.
func (m *MemMap) Pathfind(req PathRequest) (Path, error) {
	if req.Start.Traversable.Kind != TraversableLane || req.End.Traversable.Kind != TraversableLane {
		return Path{}, fmt.Errorf("mapapi: Pathfind requires lane start/end positions")
	}
	startLane := req.Start.Traversable.Lane
	endLane := req.End.Traversable.Lane
	if startLane == endLane {
		return Path{
			Steps:     []Traversable{LaneTraversable(startLane)},
			End:       req.End,
			EndAction: EndNoDecisionYet,
		}, nil
	}

	visited := map[ids.LaneID]bool{startLane: true}
	queue := []*bfsNode{{traversable: LaneTraversable(startLane)}}
	var goalNode *bfsNode
bfs:
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curLane := cur.traversable.Lane
		for _, turnID := range m.turnsFrom[curLane] {
			turn, err := m.GetTurn(turnID)
			if err != nil {
				continue
			}
			if !laneAllowsKind(m, turn.DstLane, req.VehicleKind) {
				continue
			}
			if visited[turn.DstLane] {
				continue
			}
			visited[turn.DstLane] = true
			turnNode := &bfsNode{traversable: TurnTraversable(turnID), prev: cur}
			laneNode := &bfsNode{traversable: LaneTraversable(turn.DstLane), prev: turnNode}
			if turn.DstLane == endLane {
				goalNode = laneNode
				break bfs
			}
			queue = append(queue, laneNode)
		}
	}
	if goalNode == nil {
		return Path{}, fmt.Errorf("mapapi: no path from lane %d to lane %d", startLane, endLane)
	}

	var steps []Traversable
	for n := goalNode; n != nil; n = n.prev {
		steps = append([]Traversable{n.traversable}, steps...)
	}
	return Path{Steps: steps, End: req.End, EndAction: endActionFor(req.End)}, nil
}

func endActionFor(end Position) EndAction {
	if end.Building != 0 {
		return EndParkInBuilding
	}
	return EndParkOnLane
}

func laneAllowsKind(m *MemMap, lane ids.LaneID, kind ids.VehicleKind) bool {
	info, err := m.GetLane(lane)
	if err != nil {
		return false
	}
	return info.AllowsKind(kind)
}
