package sim

import (
	"github.com/fiblab-sim/moss-core/driving"
	"github.com/fiblab-sim/moss-core/intersection"
	"github.com/fiblab-sim/moss-core/scheduler"
	"github.com/fiblab-sim/moss-core/trip"
)

// Compile-time checks that Sim satisfies every collaborator's World
// interface, mirroring the teacher's *Manager interface assertions.
var (
	_ driving.World      = (*Sim)(nil)
	_ intersection.World = (*Sim)(nil)
	_ trip.World         = (*Sim)(nil)
)

// heartbeatEvery logs a progress line every this many popped commands,
// the event-driven equivalent of the teacher's fixed-step heartbeat
// log in task/simulet.go.
const heartbeatEvery = 100000

// Run drains the scheduler until the clock reaches its end time, the
// queue empties, or an AlertBlock halt is requested. Every popped
// command is dispatched to its matching handler; UpdateCar/UpdatePed
// are the only ones expected to reschedule themselves indefinitely.
func (s *Sim) Run() {
	log.Infof("sim starting: %s .. +%.1fs", s.clock, s.cfg.Step.TotalSeconds)
	var popped int64
	for !s.clock.Done() && !s.halted {
		cmd, t, ok := s.sched.Pop()
		if !ok {
			break
		}
		s.clock.Advance(t)
		s.dispatch(cmd)

		popped++
		s.mx.SchedulerDepth.Set(float64(s.sched.Len()))
		if popped%heartbeatEvery == 0 {
			log.Infof("t=%s popped=%d pending=%d cars=%d", s.clock, popped, s.sched.Len(), len(s.cars))
		}
	}
	log.Infof("sim done: %s popped=%d", s.clock, popped)
}

func (s *Sim) dispatch(cmd scheduler.Command) {
	switch c := cmd.(type) {
	case scheduler.StartTrip:
		s.RunStartTrip(c.Trip)
	case scheduler.SpawnCar:
		s.RunSpawnCar(c)
	case scheduler.SpawnPed:
		s.RunSpawnPed(c)
	case scheduler.UpdateCar:
		driving.UpdateCar(s, c.Car)
	case scheduler.UpdateLaggyHead:
		driving.UpdateLaggyHead(s, c.Car)
	case scheduler.UpdatePed:
		s.RunUpdatePed(c)
	case scheduler.UpdateIntersection:
		if a, ok := s.arbiters[c.Intersection]; ok {
			a.UpdateIntersection(s)
		}
	case scheduler.StartBus:
		// Transit vehicle spawning is delegated to an external bus-route
		// collaborator (spec.md §1); the core only owns the wakeup slot.
	case scheduler.Callback:
		s.CheckInvariants()
		s.sched.Push(s.Now()+c.Frequency, c)
	}
}
