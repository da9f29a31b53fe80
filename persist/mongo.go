// Package persist loads scenario input (the travelers a run should
// simulate) from MongoDB. Grounded on the teacher's
// utils/input/input.go for the overall "connect, fetch, decode,
// validate" shape, but decodes directly into the trip package's own
// domain types via bson rather than the teacher's protobuf schema --
// this core has no map/person wire format of its own to translate
// (spec.md's Non-goals exclude scenario authoring), so a scenario is
// just whatever bson documents a loader hands the trip.Manager. The
// connection-lifecycle pattern (client options, ping, deferred
// disconnect) follows the pack's shared/database/mongodb.go.
package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fiblab-sim/moss-core/ids"
	"github.com/fiblab-sim/moss-core/mapapi"
	"github.com/fiblab-sim/moss-core/trip"
)

var log = logrus.WithField("module", "persist")

// Store is a connected MongoDB handle scoped to one scenario database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and selects database dbName, verifying
// reachability with a ping before returning.
func Connect(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("persist: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("persist: ping: %w", err)
	}
	log.WithField("db", dbName).Info("connected to scenario database")
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// personDoc is the bson shape of one traveler's scenario document.
// Positions are stored flat (lane/turn/dist/building) rather than as a
// nested Traversable, matching how a scenario author would hand-write
// one in a Mongo shell.
type personDoc struct {
	ID    int64      `bson:"id"`
	Trips []tripDoc `bson:"trips"`
}

type tripDoc struct {
	StartsAt float64   `bson:"starts_at"`
	Legs     []legDoc `bson:"legs"`
}

type legDoc struct {
	Mode        string  `bson:"mode"` // "walk" | "drive" | "bike" | "bus"
	FromLane    int32   `bson:"from_lane,omitempty"`
	FromDist    float64 `bson:"from_dist,omitempty"`
	FromBuilding int32  `bson:"from_building,omitempty"`
	ToLane      int32   `bson:"to_lane,omitempty"`
	ToDist      float64 `bson:"to_dist,omitempty"`
	ToBuilding  int32   `bson:"to_building,omitempty"`
	Vehicle     int64   `bson:"vehicle,omitempty"`
}

// LoadPersons fetches every document in collection coll and decodes it
// into the trip package's domain types, skipping (and logging) any
// document that fails to decode rather than aborting the whole load --
// one bad scenario record shouldn't sink an entire run.
func (s *Store) LoadPersons(ctx context.Context, coll string) ([]*trip.Person, error) {
	cur, err := s.db.Collection(coll).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("persist: find %s: %w", coll, err)
	}
	defer cur.Close(ctx)

	var out []*trip.Person
	for cur.Next(ctx) {
		var doc personDoc
		if err := cur.Decode(&doc); err != nil {
			log.Warnf("skipping malformed person document: %v", err)
			continue
		}
		out = append(out, decodePerson(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("persist: cursor %s: %w", coll, err)
	}
	log.Infof("loaded %d persons from %s", len(out), coll)
	return out, nil
}

func decodePerson(doc personDoc) *trip.Person {
	p := &trip.Person{ID: ids.PersonID(doc.ID)}
	p.Trips = lo.Map(doc.Trips, func(td tripDoc, i int) *trip.Trip {
		return &trip.Trip{
			ID:       ids.TripID(doc.ID)<<16 | ids.TripID(i),
			Person:   p.ID,
			StartsAt: td.StartsAt,
			Legs:     lo.Map(td.Legs, func(ld legDoc, _ int) trip.Leg { return decodeLeg(ld) }),
		}
	})
	return p
}

func decodeLeg(ld legDoc) trip.Leg {
	mode := trip.LegWalk
	vehicleKind := ids.VehicleKindCar
	switch ld.Mode {
	case "drive":
		mode = trip.LegDrive
	case "bike":
		mode, vehicleKind = trip.LegBike, ids.VehicleKindBike
	case "bus":
		mode = trip.LegBus
	}
	leg := trip.Leg{Mode: mode, From: decodePosition(ld.FromLane, ld.FromDist, ld.FromBuilding), To: decodePosition(ld.ToLane, ld.ToDist, ld.ToBuilding)}
	if ld.Vehicle != 0 {
		leg.Vehicle = ids.CarID{VehicleID: ids.VehicleID(ld.Vehicle), Kind: vehicleKind}
	}
	return leg
}

func decodePosition(lane int32, dist float64, building int32) mapapi.Position {
	if building != 0 {
		return mapapi.Position{Building: ids.BuildingID(building)}
	}
	return mapapi.Position{Traversable: mapapi.LaneTraversable(ids.LaneID(lane)), Dist: dist}
}
