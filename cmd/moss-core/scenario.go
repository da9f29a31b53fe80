package main

import (
	"os"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/parking"
	"github.com/fiblab-sim/moss-core/trip"
)

// scenarioFile is the standalone runner's YAML map+traveler format.
// Map/scenario authoring is out of this core's scope (spec.md §1); this
// exists only so cmd/moss-core has something to load without a real
// map/pathfinding service attached, mirroring the role the teacher's
// utils/input package played for its own proto map format.
type scenarioFile struct {
	Lanes []struct {
		ID              int32   `yaml:"id"`
		Length          float64 `yaml:"length"`
		SpeedLimit      float64 `yaml:"speed_limit"`
		RoadLaneCount   int     `yaml:"road_lane_count"`
		OffsetInRoad    int     `yaml:"offset_in_road"`
		DrivesOnTheLeft bool    `yaml:"drives_on_the_left"`
		VehicleKinds    []string `yaml:"vehicle_kinds"`
	} `yaml:"lanes"`
	Turns []struct {
		ID              int32   `yaml:"id"`
		SrcLane         int32   `yaml:"src_lane"`
		DstLane         int32   `yaml:"dst_lane"`
		Length          float64 `yaml:"length"`
		ParentIntersect int32   `yaml:"parent_intersection"`
		ConflictsWith   []int32 `yaml:"conflicts_with"`
	} `yaml:"turns"`
	Intersections []struct {
		ID                int32 `yaml:"id"`
		Kind              string `yaml:"kind"`
		TwoRoadsOnly      bool   `yaml:"two_roads_only"`
		BlockTheBoxExempt bool   `yaml:"block_the_box_exempt"`
	} `yaml:"intersections"`
	ParkingSpots []struct {
		Lane         int32   `yaml:"lane"`
		Dist         float64 `yaml:"dist"`
		SidewalkLane int32   `yaml:"sidewalk_lane"`
		SidewalkDist float64 `yaml:"sidewalk_dist"`
	} `yaml:"parking_spots"`
	Persons []struct {
		ID    int64 `yaml:"id"`
		Trips []struct {
			StartsAt float64 `yaml:"starts_at"`
			Legs     []struct {
				Mode     string `yaml:"mode"`
				FromLane int32  `yaml:"from_lane"`
				FromDist float64 `yaml:"from_dist"`
				ToLane   int32  `yaml:"to_lane"`
				ToDist   float64 `yaml:"to_dist"`
			} `yaml:"legs"`
		} `yaml:"trips"`
	} `yaml:"persons"`
}

func loadScenario(path string) (mapapi.Map, parking.Store, []*trip.Person, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	var sf scenarioFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, nil, nil, err
	}

	m := mapapi.NewMemMap()
	for _, l := range sf.Lanes {
		m.AddLane(mapapi.LaneInfo{
			ID: ids.LaneID(l.ID), Length: l.Length, SpeedLimit: l.SpeedLimit,
			RoadLaneCount: l.RoadLaneCount, OffsetInRoad: l.OffsetInRoad,
			DrivesOnTheLeft: l.DrivesOnTheLeft, VehicleKinds: vehicleKinds(l.VehicleKinds),
		})
	}
	for _, t := range sf.Turns {
		conflicts := lo.Map(t.ConflictsWith, func(c int32, _ int) ids.TurnID { return ids.TurnID(c) })
		m.AddTurn(mapapi.TurnInfo{
			ID: ids.TurnID(t.ID), SrcLane: ids.LaneID(t.SrcLane), DstLane: ids.LaneID(t.DstLane),
			Length: t.Length, ParentIntersect: ids.IntersectionID(t.ParentIntersect), ConflictsWith: conflicts,
		})
	}
	for _, i := range sf.Intersections {
		m.AddIntersection(mapapi.IntersectionInfo{
			ID: ids.IntersectionID(i.ID), Kind: intersectionKind(i.Kind),
			TwoRoadsOnly: i.TwoRoadsOnly, BlockTheBoxExempt: i.BlockTheBoxExempt,
		})
	}

	ps := parking.NewFinite()
	for idx, sp := range sf.ParkingSpots {
		ps.Register(parking.Spot{
			ID:           ids.ParkingSpotID{Kind: ids.ParkingSpotOnstreet, OwnerID: sp.Lane, Index: idx},
			Lane:         ids.LaneID(sp.Lane),
			Dist:         sp.Dist,
			SidewalkLane: ids.LaneID(sp.SidewalkLane),
			SidewalkDist: sp.SidewalkDist,
		})
	}

	var persons []*trip.Person
	for _, p := range sf.Persons {
		person := &trip.Person{ID: ids.PersonID(p.ID)}
		for ti, td := range p.Trips {
			t := &trip.Trip{ID: ids.TripID(p.ID)<<16 | ids.TripID(ti), Person: person.ID, StartsAt: td.StartsAt}
			for _, ld := range td.Legs {
				t.Legs = append(t.Legs, trip.Leg{
					Mode: legMode(ld.Mode),
					From: mapapi.Position{Traversable: mapapi.LaneTraversable(ids.LaneID(ld.FromLane)), Dist: ld.FromDist},
					To:   mapapi.Position{Traversable: mapapi.LaneTraversable(ids.LaneID(ld.ToLane)), Dist: ld.ToDist},
				})
			}
			person.Trips = append(person.Trips, t)
		}
		persons = append(persons, person)
	}

	return m, ps, persons, nil
}

func vehicleKinds(names []string) []ids.VehicleKind {
	return lo.Map(names, func(n string, _ int) ids.VehicleKind {
		switch n {
		case "bike":
			return ids.VehicleKindBike
		case "bus":
			return ids.VehicleKindBus
		case "train":
			return ids.VehicleKindTrain
		default:
			return ids.VehicleKindCar
		}
	})
}

func intersectionKind(s string) mapapi.IntersectionKind {
	switch s {
	case "stop_sign":
		return mapapi.IntersectionStopSign
	case "signal":
		return mapapi.IntersectionSignal
	case "border":
		return mapapi.IntersectionBorder
	default:
		return mapapi.IntersectionStopSign
	}
}

func legMode(s string) trip.LegMode {
	switch s {
	case "drive":
		return trip.LegDrive
	case "bike":
		return trip.LegBike
	case "bus":
		return trip.LegBus
	default:
		return trip.LegWalk
	}
}
