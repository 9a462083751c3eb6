// README: Mechanic geo index backed by a MongoDB 2dsphere collection.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"roadside/internal/types"
)

const mechanicsCollection = "mechanics"

type Store struct {
	mechanics *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{mechanics: db.Collection(mechanicsCollection)}
}

// EnsureIndexes creates the 2dsphere index $geoNear requires.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.mechanics.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "approved", Value: 1}, {Key: "serviceTypes", Value: 1}}},
	})
	return err
}

// Nearby runs $geoNear; results are ordered by spherical distance ascending.
func (s *Store) Nearby(ctx context.Context, q NearbyQuery) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "discovery.Store.Nearby", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	filter := bson.M{"approved": true}
	if q.ServiceType != "" {
		filter["serviceTypes"] = string(q.ServiceType)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":          NewGeoPoint(q.Point),
			"distanceField": "distance",
			"maxDistance":   q.MaxDistanceMeters,
			"spherical":     true,
			"query":         filter,
		}}},
		{{Key: "$limit", Value: q.Limit}},
	}

	cur, err := s.mechanics.Aggregate(ctx, pipeline)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geoNear failed")
		return nil, fmt.Errorf("discovery: geoNear: %w", err)
	}
	defer cur.Close(ctx)

	out := []Candidate{}
	for cur.Next(ctx) {
		var doc struct {
			Mechanic `bson:",inline"`
			Distance float64 `bson:"distance"`
		}
		if err := cur.Decode(&doc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode failed")
			return nil, fmt.Errorf("discovery: decode mechanic: %w", err)
		}
		out = append(out, Candidate{Mechanic: doc.Mechanic, DistanceMeters: doc.Distance})
	}
	if err := cur.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cursor error")
		return nil, fmt.Errorf("discovery: cursor: %w", err)
	}
	span.SetAttributes(attribute.Int("candidates", len(out)))
	return out, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Mechanic, error) {
	var m Mechanic
	err := s.mechanics.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMechanicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("discovery: get mechanic %s: %w", id, err)
	}
	return &m, nil
}

// GetMany returns the mechanics found among ids, keyed by ID. Missing IDs are omitted.
func (s *Store) GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Mechanic, error) {
	out := make(map[types.ID]*Mechanic, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	cur, err := s.mechanics.Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, fmt.Errorf("discovery: find mechanics: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var m Mechanic
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("discovery: decode mechanic: %w", err)
		}
		out[m.ID] = &m
	}
	return out, cur.Err()
}

func (s *Store) Upsert(ctx context.Context, m *Mechanic) error {
	_, err := s.mechanics.ReplaceOne(ctx, bson.M{"_id": string(m.ID)}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("discovery: upsert mechanic %s: %w", m.ID, err)
	}
	return nil
}
