// README: Offer assembly: nearby mechanics -> route estimate -> price -> PENDING confirmations.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"roadside/internal/modules/discovery"
	"roadside/internal/modules/pricing"
	"roadside/internal/modules/routing"
	"roadside/internal/types"
)

type Finder interface {
	FindNearby(ctx context.Context, q discovery.NearbyQuery) ([]discovery.Candidate, error)
	GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*discovery.Mechanic, error)
}

type RouteEstimator interface {
	DistanceAndDuration(ctx context.Context, origin, destination types.Point) (routing.Estimate, error)
}

type Pricer interface {
	Estimate(serviceType types.ServiceType, distanceKm, durationMin float64) (types.Money, error)
}

// Assembler computes one offer per candidate. Candidates are estimated with at most
// concurrency lookups in flight; the first failure cancels the rest and nothing is persisted.
type Assembler struct {
	repo        Repository
	finder      Finder
	routes      RouteEstimator
	pricer      Pricer
	concurrency int
	now         func() time.Time
}

func NewAssembler(repo Repository, finder Finder, routes RouteEstimator, pricer Pricer, concurrency int) *Assembler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Assembler{
		repo:        repo,
		finder:      finder,
		routes:      routes,
		pricer:      pricer,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// AssembleOffers expects req to be persisted in REQUESTED status.
func (a *Assembler) AssembleOffers(ctx context.Context, req *ServiceRequest) ([]Offer, error) {
	ctx, span := tracer.Start(ctx, "booking.AssembleOffers")
	defer span.End()
	span.SetAttributes(attribute.String("service_request_id", string(req.ID)))

	candidates, err := a.finder.FindNearby(ctx, discovery.NearbyQuery{
		Point:       req.Origin,
		ServiceType: req.ServiceType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, fmt.Errorf("booking: find nearby: %w", err)
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))

	if len(candidates) == 0 {
		if _, err := a.repo.UpdateRequestStatus(ctx, req.ID, StatusRequested, StatusNoMechanicsFound); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("booking: mark no mechanics: %w", err)
		}
		req.Status = StatusNoMechanicsFound
		span.SetStatus(codes.Error, "no providers")
		return nil, ErrNoProvidersAvailable
	}

	offers, err := a.estimate(ctx, req, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "offer estimation failed")
		return nil, err
	}

	now := a.now()
	rows := make([]Confirmation, len(offers))
	for i, o := range offers {
		rows[i] = Confirmation{
			ID:               types.ID(uuid.NewString()),
			ServiceRequestID: req.ID,
			MechanicID:       o.MechanicID,
			Status:           ConfirmationPending,
			DistanceText:     o.DistanceText,
			DistanceValue:    o.DistanceValue,
			DurationText:     o.DurationText,
			DurationValue:    o.DurationValue,
			EstimatedCost:    o.Cost,
			CreatedAt:        now,
		}
	}
	if err := a.repo.InsertConfirmations(ctx, rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist confirmations failed")
		return nil, fmt.Errorf("booking: persist confirmations: %w", err)
	}
	return offers, nil
}

// estimate keeps output in candidate order regardless of completion order.
func (a *Assembler) estimate(ctx context.Context, req *ServiceRequest, candidates []discovery.Candidate) ([]Offer, error) {
	offers := make([]Offer, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i := range candidates {
		c := candidates[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			est, err := a.routes.DistanceAndDuration(gctx, req.Origin, c.Mechanic.Location.Point())
			if err != nil {
				return fmt.Errorf("booking: route to mechanic %s: %w", c.Mechanic.ID, err)
			}
			cost, err := a.pricer.Estimate(req.ServiceType,
				pricing.KmFromMeters(est.Meters), pricing.MinutesFromSeconds(est.Seconds))
			if err != nil {
				return fmt.Errorf("booking: price for mechanic %s: %w", c.Mechanic.ID, err)
			}
			offers[i] = Offer{
				MechanicID:    c.Mechanic.ID,
				Name:          c.Mechanic.Name,
				DistanceText:  est.DistanceText,
				DistanceValue: est.Meters,
				DurationText:  est.DurationText,
				DurationValue: est.Seconds,
				Cost:          cost,
				pushToken:     c.Mechanic.PushToken,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return offers, nil
}
