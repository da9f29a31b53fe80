// Package sim wires the scheduler, queues, driving state machine,
// intersection arbiters, parking stores, and trip manager into one
// runnable simulation, implementing the narrow World interfaces each
// of those packages defines. Grounded on the teacher's task.Context:
// a single no-singleton orchestrator struct holding every manager,
// the clock, and the runtime config, built by New and driven
// by Run (spec.md §9's "no singleton sim struct").
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fiblab-sim/moss-core/clock"
	"github.com/fiblab-sim/moss-core/driving"
	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/intersection"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/metrics"
	"github.com/fiblab-sim/moss-core/parking"
	"github.com/fiblab-sim/moss-core/queue"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/trip"
	"github.com/fiblab-sim/moss-core/utils/config"
)

var log = logrus.WithField("module", "sim")

// Sim is the simulation core: every entity reference into it goes
// through an ids.* handle rather than a stored pointer (spec.md §9's
// arena pattern), and it is the single concrete implementation of
// driving.World, intersection.World, and trip.World.
type Sim struct {
	cfg   *config.RuntimeConfig
	clock *clock.Clock
	sched *scheduler.Scheduler
	mp    mapapi.Map
	mx    *metrics.Collector

	queues    map[mapapi.Traversable]*queue.Queue
	cars      map[ids.CarID]*driving.Car
	peds      map[ids.PersonID]*walker
	arbiters  map[ids.IntersectionID]*intersection.Arbiter
	parking   parking.Store
	trips     *trip.Manager

	// listeners receive every event Emit fires, in emission order. The
	// trip manager's own bookkeeping is wired in separately via direct
	// calls (EndDrivingLeg, etc.), not through this list.
	listeners []func(events.Event)

	haltOnAlert bool
	halted      bool
}

// New builds a Sim over a fully-populated map collaborator and
// configuration. Call RegisterPerson for every traveler, then Run.
// With Toggles.InfiniteParking set, ps is replaced by a fresh
// parking.Infinite.
func New(cfg config.Config, m mapapi.Map, ps parking.Store) *Sim {
	rc := config.NewRuntimeConfig(cfg)
	if rc.Toggles.InfiniteParking {
		ps = parking.NewInfinite()
	}
	s := &Sim{
		cfg:      rc,
		clock:    clock.New(rc.Step),
		sched:    scheduler.New(rc.Step.StartSeconds),
		mp:       m,
		mx:       metrics.NewCollector(),
		queues:   make(map[mapapi.Traversable]*queue.Queue),
		cars:     make(map[ids.CarID]*driving.Car),
		peds:     make(map[ids.PersonID]*walker),
		arbiters: make(map[ids.IntersectionID]*intersection.Arbiter),
		parking:  ps,
		trips:    trip.NewManager(),

		haltOnAlert: rc.Toggles.Alerts == config.AlertBlock,
	}
	return s
}

// --- World accessors shared by driving/intersection/trip ---

func (s *Sim) Now() float64                    { return s.clock.Now() }
func (s *Sim) Config() *config.RuntimeConfig   { return s.cfg }
func (s *Sim) Map() mapapi.Map                  { return s.mp }
func (s *Sim) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Sim) Metrics() *metrics.Collector     { return s.mx }
func (s *Sim) Parking() parking.Store          { return s.parking }

// OnEvent registers a listener invoked for every event Emit fires,
// for test harnesses and the debug server alike.
func (s *Sim) OnEvent(fn func(events.Event)) { s.listeners = append(s.listeners, fn) }

// Emit fans an event out to every registered listener and bumps the
// events-processed counter. Alerts are additionally routed through
// the configured AlertMode (spec.md §7).
func (s *Sim) Emit(e events.Event) {
	s.mx.EventsProcessed.Inc()
	if a, ok := e.(events.Alert); ok {
		s.handleAlert(a)
	}
	for _, fn := range s.listeners {
		fn(e)
	}
}

func (s *Sim) handleAlert(a events.Alert) {
	s.mx.AlertsEmitted.WithLabelValues(alertCategory(a)).Inc()
	switch s.cfg.Toggles.Alerts {
	case config.AlertSilence:
		return
	case config.AlertBlock:
		log.Errorf("alert at %s: %s (halting at next event boundary)", a.Location, a.Message)
		s.halted = true
	default: // AlertPrint
		log.Warnf("alert at %s: %s", a.Location, a.Message)
	}
}

func alertCategory(a events.Alert) string {
	if a.Location.Kind == mapapi.TraversableTurn {
		return "turn"
	}
	return "lane"
}

// Queue resolves a traversable to its live queue, creating one on
// first use from the map collaborator's length data and the
// configured FollowingDistance.
func (s *Sim) Queue(t mapapi.Traversable) *queue.Queue {
	if q, ok := s.queues[t]; ok {
		return q
	}
	length := 0.0
	switch t.Kind {
	case mapapi.TraversableLane:
		if l, err := s.mp.GetLane(t.Lane); err == nil {
			length = l.Length
		}
	case mapapi.TraversableTurn:
		if tu, err := s.mp.GetTurn(t.Turn); err == nil {
			length = tu.Length
		}
	}
	q := queue.NewQueue(t, length, s.cfg.Tunables.FollowingDistance)
	s.queues[t] = q
	return q
}

// Car resolves a CarID to its live Car, or nil if the car has since
// ended its driving leg.
func (s *Sim) Car(id ids.CarID) *driving.Car { return s.cars[id] }

// RequestTurn forwards to the turn's owning intersection arbiter,
// creating the arbiter lazily from the map collaborator on first use.
func (s *Sim) RequestTurn(turn ids.TurnID, car ids.CarID, speed, now float64, downstream *queue.Queue) bool {
	info, err := s.mp.GetTurn(turn)
	if err != nil {
		panic(fmt.Sprintf("sim: RequestTurn for unknown turn %d by car %s at t=%.3f", turn, car, now))
	}
	a := s.arbiterFor(info.ParentIntersect)
	return a.MaybeStartTurn(s, turn, car, false, speed, now, downstream)
}

// FinishTurn forwards to the turn's owning arbiter.
func (s *Sim) FinishTurn(turn ids.TurnID, car ids.CarID) {
	info, err := s.mp.GetTurn(turn)
	if err != nil {
		return
	}
	s.arbiterFor(info.ParentIntersect).FinishTurn(s, turn, car)
}

func (s *Sim) arbiterFor(id ids.IntersectionID) *intersection.Arbiter {
	a, ok := s.arbiters[id]
	if ok {
		return a
	}
	a, err := intersection.NewArbiter(id, s.mp)
	if err != nil {
		panic(fmt.Sprintf("sim: unknown intersection %d: %v", id, err))
	}
	s.arbiters[id] = a
	a.ActivateSignal(s, s.Now())
	return a
}

// ScheduleRetry schedules cmd to run again after delay seconds,
// implementing driving.World's blind-retry hook.
func (s *Sim) ScheduleRetry(cmd scheduler.Command, delay float64) {
	s.sched.Push(s.Now()+delay, cmd)
}

// WakeCar/WakePed implement intersection.World: reschedule a waiting
// agent's own update command at the given time.
func (s *Sim) WakeCar(car ids.CarID, at float64) {
	s.sched.Update(at, scheduler.UpdateCar{Car: car})
}

func (s *Sim) WakePed(person ids.CarID, at float64) {
	// Pedestrians are an external collaborator in this core (spec.md
	// §1); the core only owns their UpdatePed wakeup slot.
	s.sched.Update(at, scheduler.UpdatePed{Person: ids.PersonID(person.VehicleID)})
}

func (s *Sim) String() string {
	return fmt.Sprintf("sim.Sim{t=%.2f cars=%d queues=%d arbiters=%d}", s.Now(), len(s.cars), len(s.queues), len(s.arbiters))
}
