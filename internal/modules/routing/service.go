// README: Routing service converts provider routes into distance/duration estimates.
package routing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"roadside/internal/types"
)

type Service struct {
	router Router
	log    logrus.FieldLogger
	tracer trace.Tracer
}

func NewService(router Router, log logrus.FieldLogger) *Service {
	return &Service{router: router, log: log, tracer: otel.Tracer("roadside/routing")}
}

// DistanceAndDuration calls the provider once. Provider errors and missing routes
// are returned, never zero values.
func (s *Service) DistanceAndDuration(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	ctx, span := s.tracer.Start(ctx, "routing.DistanceAndDuration", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	r, err := s.router.Route(ctx, origin, destination)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "route lookup failed")
		s.log.WithError(err).WithFields(logrus.Fields{
			"origin":      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
			"destination": fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		}).Warn("routing: lookup failed")
		return Estimate{}, fmt.Errorf("routing: distance and duration: %w", err)
	}
	span.SetAttributes(
		attribute.Float64("route.meters", r.DistanceMeters),
		attribute.Float64("route.seconds", r.DurationSec),
	)
	return Estimate{
		Meters:       r.DistanceMeters,
		Seconds:      r.DurationSec,
		DistanceText: FormatDistance(r.DistanceMeters),
		DurationText: FormatDuration(r.DurationSec),
	}, nil
}
