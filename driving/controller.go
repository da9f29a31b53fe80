package driving

import (
	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/queue"
	"github.com/fiblab-sim/moss-core/scheduler"
)

// UpdateCar runs one synchronous step of the driving state machine for
// carID, dispatching on its current State.Kind per the transition
// table in spec.md §4.3. Every branch either schedules the car's next
// wakeup or leaves it to be woken by something else (the queue's
// follower-wakeup, the intersection, or a laggy-head cleanup).
func UpdateCar(w World, carID ids.CarID) {
	c := w.Car(carID)
	if c == nil {
		return // trip was cancelled underneath us; nothing to do
	}
	switch c.State.Kind {
	case Crossing:
		transitionCrossingToQueuedOrWaiting(w, c)
	case Unparking:
		transitionUnparkingToCrossing(w, c)
	case IdlingAtStop:
		transitionIdlingToCrossing(w, c)
	case WaitingToAdvance:
		transitionWaitingToAdvance(w, c)
	case Queued:
		if len(c.Path.Steps) <= 1 {
			transitionQueuedLastStep(w, c)
		} else if c.State.WantChangeLanes {
			transitionQueuedLaneChange(w, c)
		}
		// else: nothing to do until woken by a queue-position change.
	case Parking:
		transitionParkingDone(w, c)
	case ChangingLanes:
		transitionChangingLanesDone(w, c)
	}
}

// transitionCrossingToQueuedOrWaiting is transition 1: a Crossing car
// has reached the end of its current traversable.
func transitionCrossingToQueuedOrWaiting(w World, c *Car) {
	now := w.Now()
	q := w.Queue(c.Current)
	isHead := q.Head() != nil && q.Head().ID().Car.Equal(c.ID)

	if isHead {
		c.State = State{Kind: WaitingToAdvance, BlockedSince: now, StoppedAt: c.State.DistInterval.End}
		w.Scheduler().Update(now, scheduler.UpdateCar{Car: c.ID})
		return
	}

	c.State = State{Kind: Queued, BlockedSince: now, StoppedAt: c.State.DistInterval.End}

	leader := leaderOf(q, c.ID)
	if leader == nil {
		return
	}
	leaderCrossing, leaderIsCar := leaderCrossingInfo(w, leader)
	if !leaderIsCar || leaderCrossing {
		return // leader is itself queued/blocked; no overtaking opportunity
	}
	if leaderMaxSpeed(leader) >= c.MaxSpeed {
		return
	}
	// The source only triggers overtaking detection on the transition
	// into Queued, never while already queued (an Open Question in
	// spec.md §9 resolved by following the source).
	if target, ok := chooseOvertakingLane(w, c); ok {
		c.State.WantChangeLanes = true
		_ = target
	}
	if leaderIsBike(w, leader) {
		w.Emit(events.ProblemEncountered{Trip: c.Trip, Problem: events.ProblemOvertakeDesired})
	}
}

// transitionUnparkingToCrossing is transition 2.
func transitionUnparkingToCrossing(w World, c *Car) {
	now := w.Now()
	q := w.Queue(c.Current)
	if q.HasStaticBlockage("unpark", int(c.ID.VehicleID)) {
		q.ClearStaticBlockage("unpark", int(c.ID.VehicleID))
		wakeFollowerOf(w, q, c.State.Front)
	}
	lane, err := w.Map().GetLane(c.Current.Lane)
	crossTime := 5.0
	if err == nil {
		speed := c.MaxSpeed
		if lane.SpeedLimit < speed {
			speed = lane.SpeedLimit
		}
		if speed > 0 {
			crossTime = (lane.Length - c.State.Front) / speed
		}
	}
	c.State = State{
		Kind:         Crossing,
		TimeInterval: Interval{Start: now, End: now + crossTime},
		DistInterval: Interval{Start: c.State.Front, End: laneLengthOf(w, c.Current)},
	}
	w.Scheduler().Push(c.State.TimeInterval.End, scheduler.UpdateCar{Car: c.ID})
}

// transitionIdlingToCrossing is transition 3: a bus's dwell time at a
// stop elapses.
func transitionIdlingToCrossing(w World, c *Car) {
	now := w.Now()
	length := laneLengthOf(w, c.Current)
	speed := c.MaxSpeed
	if lane, err := w.Map().GetLane(c.Current.Lane); err == nil && lane.SpeedLimit < speed {
		speed = lane.SpeedLimit
	}
	crossTime := (length - c.State.Dist) / speed
	c.State = State{
		Kind:         Crossing,
		TimeInterval: Interval{Start: now, End: now + crossTime},
		DistInterval: Interval{Start: c.State.Dist, End: length},
	}
	w.Scheduler().Push(c.State.TimeInterval.End, scheduler.UpdateCar{Car: c.ID})
}

// transitionWaitingToAdvance is transition 4. c.Path.Steps[0] is always
// c.Current and c.Path.Steps[1] is always the next traversable to
// enter (mapapi.Pathfind's BFS always spells a turn out as its own
// step between the two lanes it connects), so the next step's own Kind
// says whether this advance needs an arbiter grant (entering a turn)
// or only a capacity check (entering the lane after one).
func transitionWaitingToAdvance(w World, c *Car) {
	now := w.Now()
	if len(c.Path.Steps) < 2 {
		transitionQueuedLastStep(w, c)
		return
	}
	next := c.Path.Steps[1]

	if next.Kind == mapapi.TraversableTurn {
		turnInfo, err := w.Map().GetTurn(next.Turn)
		if err != nil {
			return // path amendment needed; left for the retry path
		}
		nextQ := w.Queue(mapapi.LaneTraversable(turnInfo.DstLane))
		if !w.RequestTurn(next.Turn, c.ID, c.MaxSpeed, now, nextQ) {
			return // denied; the arbiter will reschedule us when it wakes
		}
		// The arbiter accepts at most one agent per turn at a time
		// (conflicts() treats a turn as conflicting with itself), so a
		// granted turn's queue always has room; push, don't check.
		w.Queue(next).PushCarOntoEnd(c.AsMember())
	} else {
		// Whatever we're entering, we must already be a member of its
		// queue by the time Crossing ends, since
		// transitionCrossingToQueuedOrWaiting looks ourselves up in
		// w.Queue(c.Current) to decide whether we're the head. A lane
		// isn't arbiter-gated, so check room first.
		idx, ok := w.Queue(next).GetIdxToInsertCar(c.Length, c.Length, now)
		if !ok {
			w.ScheduleRetry(scheduler.UpdateCar{Car: c.ID}, w.Config().Tunables.BlindRetryToCreepForwards)
			return
		}
		w.Queue(next).InsertCarAtIdx(idx, c.AsMember())
	}

	oldTraversable := c.Current
	oldQ := w.Queue(oldTraversable)
	oldQ.MoveFirstCarToLaggyHead()

	length := laneLengthOf(w, next)
	speed := c.MaxSpeed
	if next.Kind == mapapi.TraversableLane {
		if lane, err := w.Map().GetLane(next.Lane); err == nil && lane.SpeedLimit < speed {
			speed = lane.SpeedLimit
		}
	}
	c.Current = next
	c.State = State{
		Kind:         Crossing,
		TimeInterval: Interval{Start: now, End: now + length/speed},
		DistInterval: Interval{Start: 0, End: length},
	}
	w.Scheduler().Push(c.State.TimeInterval.End, scheduler.UpdateCar{Car: c.ID})
	w.Scheduler().Push(c.State.TimeInterval.End, scheduler.UpdateLaggyHead{Car: c.ID})
	c.LastSteps = append(c.LastSteps, oldTraversable)
	c.Path.Steps = c.Path.Steps[1:]
	w.Emit(events.AgentEntersTraversable{Time: now, Car: &c.ID, Traversable: c.Current})
}

// transitionQueuedLastStep is transition 5 (marked † in spec.md: needs
// dispatch-time distance computation).
func transitionQueuedLastStep(w World, c *Car) {
	now := w.Now()
	dist := c.State.FrontAt(now)
	switch c.Path.EndAction {
	case mapapi.EndVanishAtBorder:
		w.EndDrivingLeg(c, mapapi.EndVanishAtBorder)
	case mapapi.EndParkOnLane, mapapi.EndParkInBuilding:
		spot, ok := w.ReserveParkingSpot(c)
		if !ok {
			w.Scheduler().Push(now+w.Config().Tunables.BlindRetryToReachEndDist, scheduler.UpdateCar{Car: c.ID})
			return
		}
		dur := w.Config().Tunables.OnstreetParkingDuration
		if c.Path.EndAction == mapapi.EndParkInBuilding {
			dur = w.Config().Tunables.OffstreetParkingDuration
		}
		c.State = State{Kind: Parking, Spot: spot, Front: dist}
		w.Scheduler().Push(now+dur, scheduler.UpdateCar{Car: c.ID})
	case mapapi.EndBikeToWalkHandoff:
		w.EndDrivingLeg(c, mapapi.EndBikeToWalkHandoff)
	case mapapi.EndBusAtStop:
		c.State = State{Kind: IdlingAtStop, Dist: dist}
		w.Scheduler().Push(now+w.Config().Tunables.TimeToWaitAtBusStop, scheduler.UpdateCar{Car: c.ID})
	default: // EndNoDecisionYet: blind retry per spec.md §4.3 step 5
		w.Scheduler().Push(now+w.Config().Tunables.BlindRetryToReachEndDist, scheduler.UpdateCar{Car: c.ID})
	}
}

// transitionQueuedLaneChange is transition 6.
func transitionQueuedLaneChange(w World, c *Car) {
	now := w.Now()
	target, ok := chooseOvertakingLane(w, c)
	if !ok {
		c.State.WantChangeLanes = false
		return
	}
	targetQ := w.Queue(target)
	myFront := c.State.FrontAt(now)
	if _, ok := targetQ.GetIdxToInsertCar(myFront, c.Length, now); !ok {
		return // no room yet; try again next time we're woken
	}
	currentQ := w.Queue(c.Current)
	currentQ.ReplaceCarWithDynamicBlockage(c.AsMember(), now)
	idx, _ := targetQ.GetIdxToInsertCar(myFront, c.Length, now)
	targetQ.InsertCarAtIdx(idx, c.AsMember())

	lcTime := w.Config().Tunables.TimeToChangeLanes
	c.State = State{
		Kind:            ChangingLanes,
		From:            c.Current,
		To:              target,
		NewTimeInterval: Interval{Start: now + lcTime, End: now + lcTime + 1},
		NewDistInterval: Interval{Start: myFront, End: myFront + 1},
		LCTime:          Interval{Start: now, End: now + lcTime},
	}
	w.Scheduler().Push(c.State.LCTime.End, scheduler.UpdateCar{Car: c.ID})
}

// transitionChangingLanesDone is transition 7.
func transitionChangingLanesDone(w World, c *Car) {
	oldQ := w.Queue(c.State.From)
	oldQ.ClearDynamicBlockage(c.ID)
	wakeFollowerOf(w, oldQ, c.State.NewDistInterval.Start)

	c.Current = c.State.To
	c.State = State{Kind: Crossing, TimeInterval: c.State.NewTimeInterval, DistInterval: c.State.NewDistInterval}
	w.Scheduler().Push(c.State.TimeInterval.End, scheduler.UpdateCar{Car: c.ID})
}

// transitionParkingDone is transition 8.
func transitionParkingDone(w World, c *Car) {
	w.EndDrivingLeg(c, c.Path.EndAction)
}

// UpdateLaggyHead is spec.md §4.3.2: trims LastSteps once the car's
// tail is estimated clear of the oldest recorded traversable, notifies
// the intersection the turn that left that traversable is fully
// finished, and wakes that traversable's new follower.
func UpdateLaggyHead(w World, carID ids.CarID) {
	c := w.Car(carID)
	if c == nil || len(c.LastSteps) == 0 {
		return
	}
	oldest := c.LastSteps[0]
	q := w.Queue(oldest)
	q.RemoveMember(queue.MemberID{Kind: queue.MemberCar, Car: c.ID})
	c.LastSteps = c.LastSteps[1:]
	if oldest.Kind == mapapi.TraversableTurn {
		w.FinishTurn(oldest.Turn, c.ID)
	}
	wakeFollowerOf(w, q, laneLengthOf(w, oldest))
}

// chooseOvertakingLane computes the road offset of the adjacent lane
// on the passing side (left for right-hand traffic, right for
// left-hand traffic), but mapapi.Map has no lookup from a road offset
// to a lane, so it never resolves a target and always returns
// ok=false. Direction, vehicle-kind and route-compatibility checks are
// not performed.
func chooseOvertakingLane(w World, c *Car) (mapapi.Traversable, bool) {
	if c.Current.Kind != mapapi.TraversableLane {
		return mapapi.Traversable{}, false
	}
	lane, err := w.Map().GetLane(c.Current.Lane)
	if err != nil || lane.RoadLaneCount < 2 {
		return mapapi.Traversable{}, false
	}
	passingSide := -1
	if lane.DrivesOnTheLeft {
		passingSide = 1
	}
	targetOffset := lane.OffsetInRoad + passingSide
	if targetOffset < 0 || targetOffset >= lane.RoadLaneCount {
		return mapapi.Traversable{}, false
	}
	// mapapi.Map exposes no (road, offset) -> lane id lookup, so no
	// overtaking target is resolved from targetOffset.
	return mapapi.Traversable{}, false
}

func leaderOf(q *queue.Queue, carID ids.CarID) queue.Member {
	members := q.Members()
	for i, m := range members {
		if m.ID().Kind == queue.MemberCar && m.ID().Car.Equal(carID) {
			if i == 0 {
				return nil
			}
			return members[i-1]
		}
	}
	return nil
}

func leaderCrossingInfo(w World, leader queue.Member) (isQueued bool, isCar bool) {
	if leader.ID().Kind != queue.MemberCar {
		return false, false
	}
	lc := w.Car(leader.ID().Car)
	if lc == nil {
		return false, false
	}
	return lc.State.Kind == Queued || lc.State.Kind == WaitingToAdvance, true
}

func leaderMaxSpeed(leader queue.Member) float64 { return leader.V() }

func leaderIsBike(w World, leader queue.Member) bool {
	if leader.ID().Kind != queue.MemberCar {
		return false
	}
	return leader.ID().Car.Kind == ids.VehicleKindBike
}

func wakeFollowerOf(w World, q *queue.Queue, clearedFront float64) {
	now := w.Now()
	for _, m := range q.Members() {
		if m.ID().Kind != queue.MemberCar {
			continue
		}
		car := w.Car(m.ID().Car)
		if car == nil {
			continue
		}
		if car.State.Kind == Queued {
			w.Scheduler().Update(now, scheduler.UpdateCar{Car: car.ID})
		}
	}
}

func laneLengthOf(w World, t mapapi.Traversable) float64 {
	switch t.Kind {
	case mapapi.TraversableLane:
		if l, err := w.Map().GetLane(t.Lane); err == nil {
			return l.Length
		}
	case mapapi.TraversableTurn:
		if tu, err := w.Map().GetTurn(t.Turn); err == nil {
			return tu.Length
		}
	}
	return 0
}


