package intersection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/intersection"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/utils/config"
)

type fakeWorld struct {
	now     float64
	cfg     *config.RuntimeConfig
	m       mapapi.Map
	sched   *scheduler.Scheduler
	events  []events.Event
	woken   []ids.CarID
	wokenAt map[ids.CarID]float64
}

func newFakeWorld(m mapapi.Map) *fakeWorld {
	return &fakeWorld{
		cfg:     config.NewRuntimeConfig(config.Config{}),
		m:       m,
		sched:   scheduler.New(0),
		wokenAt: make(map[ids.CarID]float64),
	}
}

func (w *fakeWorld) Now() float64                  { return w.now }
func (w *fakeWorld) Config() *config.RuntimeConfig  { return w.cfg }
func (w *fakeWorld) Map() mapapi.Map                { return w.m }
func (w *fakeWorld) Scheduler() *scheduler.Scheduler { return w.sched }
func (w *fakeWorld) Emit(e events.Event)            { w.events = append(w.events, e) }
func (w *fakeWorld) WakeCar(car ids.CarID, at float64) {
	w.woken = append(w.woken, car)
	w.wokenAt[car] = at
}
func (w *fakeWorld) WakePed(person ids.CarID, at float64) {}

var _ intersection.World = (*fakeWorld)(nil)

func stopSignMap() *mapapi.MemMap {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 3, Length: 50})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 3, Length: 5})
	m.AddTurn(mapapi.TurnInfo{ID: 20, SrcLane: 2, DstLane: 3, Length: 5, ConflictsWith: []ids.TurnID{10}})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})
	return m
}

func car(n int64) ids.CarID { return ids.CarID{VehicleID: ids.VehicleID(n)} }

func TestMaybeStartTurnFirstYieldRequestMustWait(t *testing.T) {
	m := stopSignMap()
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	ok := a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	assert.False(t, ok, "a fresh stop-sign request must wait WaitAtStopSign before being granted")
}

func TestMaybeStartTurnGrantedAfterWait(t *testing.T) {
	m := stopSignMap()
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	w.now = w.cfg.Tunables.WaitAtStopSign + 0.01
	ok := a.MaybeStartTurn(w, 10, car(1), false, 10, w.now, nil)
	assert.True(t, ok)
}

func TestMaybeStartTurnBannedTurnAlwaysDenied(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionSignal})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2})
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)
	// no signal plan was registered, so every turn resolves Banned.
	assert.False(t, a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil))
}

func TestMaybeStartTurnConflictingTurnDenied(t *testing.T) {
	m := stopSignMap()
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	// seed both requests at t=0 so the stop-sign wait has elapsed.
	a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	a.MaybeStartTurn(w, 20, car(2), false, 10, 0, nil)
	w.now = w.cfg.Tunables.WaitAtStopSign + 0.01
	require.True(t, a.MaybeStartTurn(w, 10, car(1), false, 10, w.now, nil))

	ok := a.MaybeStartTurn(w, 20, car(2), false, 10, w.now, nil)
	assert.False(t, ok, "turn 20 conflicts with the already-accepted turn 10")
}

func TestFinishTurnWakesWaiters(t *testing.T) {
	m := stopSignMap()
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	a.MaybeStartTurn(w, 20, car(2), false, 10, 0, nil)
	w.now = w.cfg.Tunables.WaitAtStopSign + 0.01
	require.True(t, a.MaybeStartTurn(w, 10, car(1), false, 10, w.now, nil))
	require.False(t, a.MaybeStartTurn(w, 20, car(2), false, 10, w.now, nil))

	// forget the stop-sign wake-ups so only FinishTurn's wake is seen.
	w.woken = nil
	a.FinishTurn(w, 10, car(1))
	assert.Contains(t, w.woken, car(2))
}

func TestMaybeStartTurnBlockTheBoxDeniesWithoutDownstreamRoom(t *testing.T) {
	m := stopSignMap()
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	downstream := queue.NewQueue(mapapi.LaneTraversable(3), 3, 2)
	// fill downstream to capacity so no reservation fits.
	downstream.TryToReserveEntry(3, false)

	w.cfg.Toggles.DontBlockTheBox = true
	a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	w.now = w.cfg.Tunables.WaitAtStopSign + 0.01
	ok := a.MaybeStartTurn(w, 10, car(1), false, 10, w.now, downstream)
	assert.False(t, ok, "DontBlockTheBox must deny a turn with no downstream room")
}

func TestMaybeStartTurnTwoRoadsOnlyExemptFromBlockTheBox(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 3, Length: 50})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 3, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign, TwoRoadsOnly: true})
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	downstream := queue.NewQueue(mapapi.LaneTraversable(3), 3, 2)
	downstream.TryToReserveEntry(3, false)

	w.cfg.Toggles.DontBlockTheBox = true
	a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	w.now = w.cfg.Tunables.WaitAtStopSign + 0.01
	ok := a.MaybeStartTurn(w, 10, car(1), false, 10, w.now, downstream)
	assert.True(t, ok, "a TwoRoadsOnly intersection is exempt from the block-the-box check")
}

func TestSignalActivateAndAdvanceStage(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 50})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 2, Length: 5})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionSignal})
	m.SetSignal(100, mapapi.TrafficSignalPlan{Stages: []mapapi.SignalStage{
		{Kind: mapapi.StageFixed, Duration: 10, PriorityByTurn: map[ids.TurnID]mapapi.TurnPriority{10: mapapi.TurnProtected}},
		{Kind: mapapi.StageFixed, Duration: 10},
	}})
	w := newFakeWorld(m)
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	a.ActivateSignal(w, 0)
	require.Equal(t, 1, w.sched.Len())

	ok := a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	assert.True(t, ok, "turn 10 is Protected in the first stage")

	_, at, popped := w.sched.Pop()
	require.True(t, popped)
	w.now = at
	a.UpdateIntersection(w)

	// stage 2 grants no priority to turn 10, so it is now banned.
	ok = a.MaybeStartTurn(w, 10, car(2), false, 10, w.now, nil)
	assert.False(t, ok)
}

func TestDeadlockCycleBreak(t *testing.T) {
	m := mapapi.NewMemMap()
	m.AddLane(mapapi.LaneInfo{ID: 1, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 2, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 3, Length: 50})
	m.AddLane(mapapi.LaneInfo{ID: 4, Length: 50})
	m.AddTurn(mapapi.TurnInfo{ID: 10, SrcLane: 1, DstLane: 3, Length: 5})
	m.AddTurn(mapapi.TurnInfo{ID: 20, SrcLane: 2, DstLane: 4, Length: 5, ConflictsWith: []ids.TurnID{10}})
	m.AddIntersection(mapapi.IntersectionInfo{ID: 100, Kind: mapapi.IntersectionStopSign})
	w := newFakeWorld(m)
	w.cfg.Toggles.BreakTurnConflictCycles = true
	a, err := intersection.NewArbiter(100, m)
	require.NoError(t, err)

	// seed both pending requests at t=0 so their wait timers start
	// together, then advance past the stop-sign wait.
	a.MaybeStartTurn(w, 10, car(1), false, 10, 0, nil)
	a.MaybeStartTurn(w, 20, car(2), false, 10, 0, nil)
	w.now = w.cfg.Tunables.WaitAtStopSign + 0.01

	require.True(t, a.MaybeStartTurn(w, 10, car(1), false, 10, w.now, nil))
	// car(2)'s conflicting request against the now-accepted turn 10
	// must be escaped by the cycle-break rather than denied forever.
	ok := a.MaybeStartTurn(w, 20, car(2), false, 10, w.now, nil)
	assert.True(t, ok, "a detected wait-cycle must be broken rather than deadlock")
}
