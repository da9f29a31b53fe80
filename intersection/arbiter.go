// Package intersection implements the turn arbiter of spec.md §4.4:
// freeform/stop-sign/signal policies, the downstream-room
// (block-the-box) check, deadlock-escape cycle detection, and
// uber-turn atomic reservation. Grounded on the teacher's
// entity/junction package (junction.go's per-junction controller
// selection, trafficlight/local.go's buffered stage-advancement
// pattern) generalized from the teacher's continuous dt-stepped
// signal update to the spec's single-event UpdateIntersection.
package intersection

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/utils/config"
)

// request is one pending or accepted turn request.
type request struct {
	Turn      ids.TurnID
	Agent     ids.CarID // zero-value VehicleID for a pedestrian request
	IsPed     bool
	Speed     float64
	Priority  mapapi.TurnPriority
	WaitStart float64
	Accepted  bool
	// UberTurn, if non-empty, is the full sequence this request
	// belongs to. With HandleUberTurns set, the turn is granted only if
	// every other member is grantable at that moment; the other members
	// are not reserved. Nothing in this package fills UberTurn.
	UberTurn []ids.TurnID

	// Downstream/ReservedLen record the block-the-box reservation this
	// request made on its destination lane's queue at grant time, if
	// any, so FinishTurn can free it once the agent has actually
	// cleared the turn (spec.md §8's reserve/free round-trip law).
	Downstream  *queue.Queue
	ReservedLen float64
}

// World is the narrow set of collaborators the arbiter needs.
type World interface {
	Now() float64
	Config() *config.RuntimeConfig
	Map() mapapi.Map
	Scheduler() *scheduler.Scheduler
	Emit(events.Event)
	WakeCar(car ids.CarID, at float64)
	WakePed(person ids.CarID, at float64)
}

// Arbiter manages turn admission at one intersection.
type Arbiter struct {
	ID   ids.IntersectionID
	Info mapapi.IntersectionInfo

	pending  []*request // not yet decided
	accepted []*request // currently crossing (between grant and FinishTurn)

	// blockedBy records (blocker car, blocked car) pairs currently
	// preventing a grant, for the deadlock-escape cycle search
	// (spec.md §4.4).
	blockedBy map[ids.CarID]map[ids.CarID]bool

	// signal state, valid only if Info.Kind == IntersectionSignal.
	plan        mapapi.TrafficSignalPlan
	stageIdx    int
	stageEndsAt float64
	extensionsUsed int
}

// NewArbiter builds an arbiter for the given intersection, pulling its
// signal plan (if any) from m.
func NewArbiter(id ids.IntersectionID, m mapapi.Map) (*Arbiter, error) {
	info, err := m.GetIntersection(id)
	if err != nil {
		return nil, err
	}
	a := &Arbiter{ID: id, Info: info, blockedBy: make(map[ids.CarID]map[ids.CarID]bool)}
	if info.Kind == mapapi.IntersectionSignal {
		if plan, ok := m.GetTrafficSignal(id); ok {
			a.plan = plan
		}
	}
	return a, nil
}

// ActivateSignal arms the first stage at time now and schedules its
// UpdateIntersection wakeup. Called once at sim start for every
// signalized intersection.
func (a *Arbiter) ActivateSignal(w World, now float64) {
	if a.Info.Kind != mapapi.IntersectionSignal || len(a.plan.Stages) == 0 {
		return
	}
	a.stageIdx = 0
	a.stageEndsAt = now + a.plan.Offset + a.stageDuration(0)
	w.Scheduler().Push(a.stageEndsAt, scheduler.UpdateIntersection{Intersection: a.ID})
}

func (a *Arbiter) stageDuration(i int) float64 {
	s := a.plan.Stages[i]
	if s.Kind == mapapi.StageFixed {
		return s.Duration
	}
	return s.MinDuration
}

func (a *Arbiter) currentStage() (mapapi.SignalStage, bool) {
	if a.Info.Kind != mapapi.IntersectionSignal || len(a.plan.Stages) == 0 {
		return mapapi.SignalStage{}, false
	}
	return a.plan.Stages[a.stageIdx], true
}

// priorityFor resolves a turn's priority under the current policy.
func (a *Arbiter) priorityFor(turn ids.TurnID, forceFreeform bool) mapapi.TurnPriority {
	if forceFreeform || a.Info.Kind == mapapi.IntersectionBorder {
		return mapapi.TurnProtected
	}
	switch a.Info.Kind {
	case mapapi.IntersectionStopSign:
		return mapapi.TurnYield
	case mapapi.IntersectionSignal:
		stage, ok := a.currentStage()
		if !ok {
			return mapapi.TurnBanned
		}
		if p, ok := stage.PriorityByTurn[turn]; ok {
			return p
		}
		return mapapi.TurnBanned
	default:
		return mapapi.TurnProtected
	}
}

// MaybeStartTurn is spec.md §4.4's maybe_start_turn: an atomic
// accept/deny decision. On true the turn is registered accepted and
// the caller MUST perform it.
func (a *Arbiter) MaybeStartTurn(w World, turn ids.TurnID, agent ids.CarID, isPed bool, speed, now float64, downstream *queue.Queue) bool {
	freeform := w.Config().Toggles.UseFreeformPolicyEverywhere
	priority := a.priorityFor(turn, freeform)
	if priority == mapapi.TurnBanned {
		return false
	}

	req := a.findOrCreatePending(turn, agent, isPed, speed, now, priority)

	if priority == mapapi.TurnYield {
		wait := w.Config().Tunables.WaitAtStopSign
		if a.Info.Kind == mapapi.IntersectionSignal {
			wait = w.Config().Tunables.WaitBeforeYieldAtTrafficSignal
		}
		if now-req.WaitStart < wait {
			// Nothing else is guaranteed to ever call wakeWaiters before
			// this timer expires (a lone car at a fresh stop sign has no
			// conflicting accepted turn to FinishTurn, and no signal
			// stage to advance), so self-schedule the retry rather than
			// leaving the requester stalled until some unrelated event
			// happens to wake it.
			at := req.WaitStart + wait
			if req.IsPed {
				w.WakePed(req.Agent, at)
			} else {
				w.WakeCar(req.Agent, at)
			}
			return false
		}
	}

	if a.Info.Kind == mapapi.IntersectionSignal {
		turnInfo, err := w.Map().GetTurn(turn)
		if err == nil && speed > 0 {
			crossTime := turnInfo.Length / speed
			if crossTime > a.stageEndsAt-now {
				if !a.fitsAnyStage(turnInfo, speed) {
					w.Emit(events.Alert{Location: mapapi.TurnTraversable(turn), Message: "turn cannot fit in any signal stage; accepting anyway"})
					w.Emit(events.ProblemEncountered{Problem: events.ProblemImpossibleSignalStage})
				} else {
					return false
				}
			}
		}
	}

	for _, other := range a.accepted {
		if conflicts(w, turn, other.Turn) || sameDestination(w, turn, other.Turn) {
			if !a.tryBreakDeadlock(w, turn, agent, other) {
				return false
			}
		}
	}

	inUberTurn := len(req.UberTurn) > 0
	exempt := a.Info.TwoRoadsOnly || a.Info.BlockTheBoxExempt || inUberTurn
	if w.Config().Toggles.DontBlockTheBox && !exempt && downstream != nil {
		if !downstream.TryToReserveEntry(carLengthEstimate, false) {
			return false
		}
		req.Downstream = downstream
		req.ReservedLen = carLengthEstimate
	}

	if inUberTurn && w.Config().Toggles.HandleUberTurns {
		for _, t := range req.UberTurn {
			if t == turn {
				continue
			}
			if !a.grantable(w, t) {
				return false
			}
		}
	}

	a.accept(req)
	return true
}

// carLengthEstimate approximates a car's footprint for the downstream
// reservation check when the caller doesn't have the live Car handy.
// A real implementation threads the car's own Length through; kept as
// a named constant here since intersection has no driving.Car
// dependency (intersection does not import driving).
const carLengthEstimate = 5.0

func (a *Arbiter) findOrCreatePending(turn ids.TurnID, agent ids.CarID, isPed bool, speed, now float64, priority mapapi.TurnPriority) *request {
	for _, r := range a.pending {
		if r.Turn == turn && r.Agent == agent {
			r.Priority = priority
			return r
		}
	}
	r := &request{Turn: turn, Agent: agent, IsPed: isPed, Speed: speed, Priority: priority, WaitStart: now}
	a.pending = append(a.pending, r)
	return r
}

func (a *Arbiter) accept(req *request) {
	req.Accepted = true
	a.removePending(req)
	a.accepted = append(a.accepted, req)
	delete(a.blockedBy, req.Agent)
}

func (a *Arbiter) removePending(req *request) {
	for i, r := range a.pending {
		if r == req {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return
		}
	}
}

// grantable reports whether turn could be granted right now, without
// actually granting it -- used by the uber-turn atomic-reservation
// check.
func (a *Arbiter) grantable(w World, turn ids.TurnID) bool {
	for _, other := range a.accepted {
		if conflicts(w, turn, other.Turn) || sameDestination(w, turn, other.Turn) {
			return false
		}
	}
	return true
}

// FinishTurn is called once a car/ped has fully cleared the turn
// (driving's UpdateLaggyHead, or a pedestrian curb crossing).
// Releases the slot and wakes anything that was blocked by it.
func (a *Arbiter) FinishTurn(w World, turn ids.TurnID, agent ids.CarID) {
	for i, r := range a.accepted {
		if r.Turn == turn && r.Agent == agent {
			if r.Downstream != nil {
				r.Downstream.FreeReservedSpace(r.ReservedLen)
			}
			a.accepted = append(a.accepted[:i], a.accepted[i+1:]...)
			break
		}
	}
	a.wakeWaiters(w)
}

// tryBreakDeadlock implements spec.md §4.4's cycle-break escape: never
// for same-destination conflicts (always fatal), otherwise record the
// blocked_by edge and DFS for a cycle back to the requester.
func (a *Arbiter) tryBreakDeadlock(w World, turn ids.TurnID, requester ids.CarID, blocker *request) bool {
	if sameDestination(w, turn, blocker.Turn) {
		return false
	}
	if !w.Config().Toggles.BreakTurnConflictCycles {
		return false
	}
	if a.blockedBy[blocker.Agent] == nil {
		a.blockedBy[blocker.Agent] = make(map[ids.CarID]bool)
	}
	a.blockedBy[blocker.Agent][requester] = true

	if a.hasCycle(blocker.Agent, requester, map[ids.CarID]bool{}) {
		w.Emit(events.Alert{Location: mapapi.TurnTraversable(turn), Message: fmt.Sprintf("deadlock cycle broken at intersection %d", a.ID)})
		w.Emit(events.ProblemEncountered{Problem: events.ProblemIntersectionDeadlockEscaped})
		return true
	}
	return false
}

func (a *Arbiter) hasCycle(from, target ids.CarID, visited map[ids.CarID]bool) bool {
	if from.Equal(target) {
		return true
	}
	if visited[from] {
		return false
	}
	visited[from] = true
	for next := range a.blockedBy[from] {
		if a.hasCycle(next, target, visited) {
			return true
		}
	}
	return false
}

// wakeWaiters reschedules UpdateCar/UpdatePed for every pending
// request, whether or not the current state admits it -- Protected
// requests at now, Yield at now+epsilon so protected movements get
// first dibs
// (spec.md §4.4, §5).
func (a *Arbiter) wakeWaiters(w World) {
	now := w.Now()
	eps := w.Config().Tunables.YieldEpsilon
	for _, r := range a.pending {
		at := now
		if r.Priority == mapapi.TurnYield {
			at = now + eps
		}
		if r.IsPed {
			w.WakePed(r.Agent, at)
		} else {
			w.WakeCar(r.Agent, at)
		}
	}
}

// UpdateIntersection advances a signalized intersection's stage
// (spec.md §4.4's "signal stage advancement").
func (a *Arbiter) UpdateIntersection(w World) {
	if a.Info.Kind != mapapi.IntersectionSignal || len(a.plan.Stages) == 0 {
		return
	}
	now := w.Now()
	stage := a.plan.Stages[a.stageIdx]
	if stage.Kind == mapapi.StageVariable && a.extensionsUsed < stage.MaxExtensions && a.hasWaitingProtectedRequest(stage) {
		a.extensionsUsed++
		a.stageEndsAt = now + stage.ExtendBy
	} else {
		a.extensionsUsed = 0
		next := a.stageIdx
		for {
			next = (next + 1) % len(a.plan.Stages)
			if a.plan.Stages[next].Duration > 0 || a.plan.Stages[next].Kind == mapapi.StageVariable {
				break
			}
			if next == a.stageIdx {
				break // every stage is zero-duration; avoid an infinite loop
			}
		}
		a.stageIdx = next
		a.stageEndsAt = now + a.stageDuration(a.stageIdx)
	}
	w.Scheduler().Push(a.stageEndsAt, scheduler.UpdateIntersection{Intersection: a.ID})
	a.wakeWaiters(w)
}

func (a *Arbiter) hasWaitingProtectedRequest(stage mapapi.SignalStage) bool {
	for _, r := range a.pending {
		if r.IsPed {
			continue
		}
		if stage.PriorityByTurn[r.Turn] == mapapi.TurnProtected {
			return true
		}
	}
	return false
}

func (a *Arbiter) fitsAnyStage(turn mapapi.TurnInfo, speed float64) bool {
	for _, s := range a.plan.Stages {
		d := s.Duration
		if s.Kind == mapapi.StageVariable {
			d = s.MinDuration + float64(s.MaxExtensions)*s.ExtendBy
		}
		if turn.Length/speed <= d {
			return true
		}
	}
	return false
}

func conflicts(w World, a, b ids.TurnID) bool {
	if a == b {
		return true
	}
	info, err := w.Map().GetTurn(a)
	if err != nil {
		return false
	}
	return info.ConflictsWithTurn(b)
}

func sameDestination(w World, a, b ids.TurnID) bool {
	ia, erra := w.Map().GetTurn(a)
	ib, errb := w.Map().GetTurn(b)
	if erra != nil || errb != nil {
		return false
	}
	return ia.DstLane == ib.DstLane
}
