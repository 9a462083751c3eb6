// README: Discovery service answers "k nearest eligible mechanics" queries.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadside/internal/types"
)

var tracer = otel.Tracer("roadside/discovery")

var (
	ErrInvalidQuery     = errors.New("invalid nearby query")
	ErrMechanicNotFound = errors.New("mechanic not found")
)

const (
	DefaultMaxDistanceMeters = 10000
	DefaultLimit             = 3
)

// Index is the storage contract; *Store is the Mongo implementation.
type Index interface {
	Nearby(ctx context.Context, q NearbyQuery) ([]Candidate, error)
	Get(ctx context.Context, id types.ID) (*Mechanic, error)
	GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Mechanic, error)
}

type Service struct {
	index       Index
	maxDistance float64
	limit       int
	log         logrus.FieldLogger
}

// NewService uses the package defaults when maxDistance or limit are not positive.
func NewService(index Index, maxDistance float64, limit int, log logrus.FieldLogger) *Service {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistanceMeters
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{index: index, maxDistance: maxDistance, limit: limit, log: log}
}

// FindNearby returns eligible mechanics closest first. An empty result is not an error.
func (s *Service) FindNearby(ctx context.Context, q NearbyQuery) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "discovery.FindNearby")
	defer span.End()

	if q.MaxDistanceMeters == 0 {
		q.MaxDistanceMeters = s.maxDistance
	}
	if q.Limit == 0 {
		q.Limit = s.limit
	}
	if err := validate(q); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("service_type", string(q.ServiceType)),
		attribute.Float64("max_distance_m", q.MaxDistanceMeters),
		attribute.Int("limit", q.Limit),
	)

	out, err := s.index.Nearby(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby failed")
		s.log.WithError(err).Error("discovery: nearby query failed")
		return nil, err
	}
	if out == nil {
		out = []Candidate{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Mechanic, error) {
	return s.index.Get(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Mechanic, error) {
	return s.index.GetMany(ctx, ids)
}

func validate(q NearbyQuery) error {
	switch {
	case !q.Point.Valid():
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidQuery)
	case q.MaxDistanceMeters < 0:
		return fmt.Errorf("%w: max distance must be positive", ErrInvalidQuery)
	case q.Limit < 0:
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	case q.ServiceType != "" && !q.ServiceType.Valid():
		return fmt.Errorf("%w: unknown service type", ErrInvalidQuery)
	}
	return nil
}
