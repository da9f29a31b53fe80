package sim

import (
	"github.com/fiblab-sim/moss-core/events"
	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/scheduler"
)

// walker tracks a pedestrian's in-progress leg. The walking simulator
// proper is an external collaborator (spec.md §1); the core only
// tracks enough state to know when a leg completes and which trip it
// belongs to, so it can fire the right leg-completion callback.
type walker struct {
	Trip ids.TripID
	Path mapapi.Path
	End  mapapi.Position
}

// RunSpawnPed handles a scheduler.SpawnPed command: registers the
// walker and schedules a single UpdatePed wakeup at an estimated
// arrival time (distance over a fixed nominal walking speed), standing
// in for the full external walking simulation.
func (s *Sim) RunSpawnPed(cmd scheduler.SpawnPed) {
	const walkSpeed = 1.4 // m/s, a typical adult walking pace
	dist := 0.0
	for _, step := range cmd.Path.Steps {
		dist += s.traversableLength(step)
	}
	s.peds[cmd.Person] = &walker{Trip: cmd.Trip, Path: cmd.Path, End: cmd.Path.End}
	s.mx.ActivePeds.Inc()
	s.Emit(events.PersonEntersMap{Person: cmd.Person})
	s.sched.Push(s.Now()+dist/walkSpeed, scheduler.UpdatePed{Person: cmd.Person})
}

// RunUpdatePed completes the pedestrian's walking leg and routes to
// the matching trip-manager callback based on the leg's end action.
func (s *Sim) RunUpdatePed(cmd scheduler.UpdatePed) {
	w, ok := s.peds[cmd.Person]
	if !ok {
		return
	}
	delete(s.peds, cmd.Person)
	s.mx.ActivePeds.Dec()
	s.Emit(events.PersonLeavesMap{Person: cmd.Person})

	switch w.Path.EndAction {
	case mapapi.EndBusAtStop:
		s.trips.PedReachedBusStop(s, w.Trip, cmd.Person)
	case mapapi.EndParkInBuilding:
		s.trips.PedReachedBuilding(s, w.Trip, cmd.Person, w.End.Building)
	default:
		s.trips.PedReachedBuilding(s, w.Trip, cmd.Person, w.End.Building)
	}
}

func (s *Sim) traversableLength(t mapapi.Traversable) float64 {
	switch t.Kind {
	case mapapi.TraversableLane:
		if l, err := s.mp.GetLane(t.Lane); err == nil {
			return l.Length
		}
	case mapapi.TraversableTurn:
		if tu, err := s.mp.GetTurn(t.Turn); err == nil {
			return tu.Length
		}
	}
	return 0
}
