// README: Booking service is the public entry point for requests, offers, responses and confirmation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadside/internal/modules/notify"
	"roadside/internal/types"
)

var tracer = otel.Tracer("roadside/booking")

var (
	ErrNotFound             = errors.New("service request or confirmation not found")
	ErrNoProvidersAvailable = errors.New("no mechanics available nearby")
	ErrMechanicNotAccepted  = errors.New("mechanic has not accepted this request")
	ErrAlreadyResponded     = errors.New("mechanic already responded to this request")
	ErrAlreadyConfirmed     = errors.New("service request already confirmed")
	ErrBadRequest           = errors.New("bad request")
)

// Repository is the persistence contract; *Store is the Postgres implementation.
type Repository interface {
	CreateRequest(ctx context.Context, r *ServiceRequest) error
	GetRequest(ctx context.Context, id types.ID) (*ServiceRequest, error)
	UpdateRequestStatus(ctx context.Context, id types.ID, from, to RequestStatus) (bool, error)
	InsertConfirmations(ctx context.Context, cs []Confirmation) error
	GetConfirmation(ctx context.Context, requestID, mechanicID types.ID) (*Confirmation, error)
	RespondConfirmation(ctx context.Context, requestID, mechanicID types.ID, to ConfirmationStatus, at time.Time) (bool, error)
	ListConfirmations(ctx context.Context, requestID types.ID) ([]Confirmation, error)
	AverageRatings(ctx context.Context, mechanicIDs []types.ID) (map[types.ID]float64, error)
	ConfirmWithChat(ctx context.Context, requestID, mechanicID types.ID, chat Chat) (*ServiceRequest, bool, error)
}

type Service struct {
	repo          Repository
	finder        Finder
	assembler     *Assembler
	state         *StateMachine
	notifier      notify.Notifier
	notifyTimeout time.Duration
	log           logrus.FieldLogger
	now           func() time.Time

	pending sync.WaitGroup
}

type Options struct {
	RouteConcurrency int
	Notifier         notify.Notifier
	NotifyTimeout    time.Duration
}

func NewService(repo Repository, finder Finder, routes RouteEstimator, pricer Pricer, log logrus.FieldLogger, opts Options) *Service {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	return &Service{
		repo:          repo,
		finder:        finder,
		assembler:     NewAssembler(repo, finder, routes, pricer, opts.RouteConcurrency),
		state:         NewStateMachine(repo),
		notifier:      opts.Notifier,
		notifyTimeout: opts.NotifyTimeout,
		log:           log,
		now:           time.Now,
	}
}

// InitiateServiceRequest creates a REQUESTED request and assembles its offers.
// No partial results: it returns every offer or an error.
func (s *Service) InitiateServiceRequest(ctx context.Context, cmd InitiateCommand) (*InitiateResult, error) {
	ctx, span := tracer.Start(ctx, "booking.InitiateServiceRequest")
	defer span.End()

	if cmd.UserID == "" || !cmd.ServiceType.Valid() || !cmd.Origin.Valid() {
		return nil, ErrBadRequest
	}
	now := s.now()
	req := &ServiceRequest{
		ID:          types.ID(uuid.NewString()),
		UserID:      cmd.UserID,
		ServiceType: cmd.ServiceType,
		Origin:      cmd.Origin,
		Description: cmd.Description,
		Address:     cmd.Address,
		Status:      StatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create request failed")
		return nil, fmt.Errorf("booking: create request: %w", err)
	}
	span.SetAttributes(attribute.String("service_request_id", string(req.ID)))
	log := s.log.WithFields(logrus.Fields{"service_request_id": req.ID, "service_type": req.ServiceType})

	offers, err := s.assembler.AssembleOffers(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "offer assembly failed")
		log.WithError(err).Warn("booking: offer assembly failed")
		return nil, err
	}
	log.WithField("offers", len(offers)).Info("booking: offers issued")

	for _, o := range offers {
		s.notifyDetached(ctx, notify.Message{
			Recipient:   o.MechanicID,
			DeviceToken: o.pushToken,
			Event:       notify.EventNewOffer,
			Title:       "New service request",
			Body:        fmt.Sprintf("%s needed %s away", req.ServiceType, o.DistanceText),
			Data: map[string]string{
				"serviceRequestId": string(req.ID),
				"serviceType":      string(req.ServiceType),
				"distance":         o.DistanceText,
				"duration":         o.DurationText,
			},
		})
	}
	return &InitiateResult{ServiceRequestID: req.ID, Offers: offers}, nil
}

func (s *Service) MechanicRespondsToRequest(ctx context.Context, cmd RespondCommand) error {
	ctx, span := tracer.Start(ctx, "booking.MechanicRespondsToRequest")
	defer span.End()

	c, err := s.state.Respond(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "respond failed")
		return err
	}
	s.log.WithFields(logrus.Fields{
		"service_request_id": cmd.ServiceRequestID,
		"mechanic_id":        cmd.MechanicID,
		"status":             c.Status,
	}).Info("booking: mechanic responded")
	return nil
}

// GetMechanicsForServiceRequest ranks confirmations by status string, then distance.
func (s *Service) GetMechanicsForServiceRequest(ctx context.Context, requestID types.ID) ([]RankedMechanic, error) {
	ctx, span := tracer.Start(ctx, "booking.GetMechanicsForServiceRequest")
	defer span.End()

	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.MechanicsForRequest(ctx, req)
}

// MechanicsForRequest ranks the confirmations of an already loaded request.
func (s *Service) MechanicsForRequest(ctx context.Context, req *ServiceRequest) ([]RankedMechanic, error) {
	ctx, span := tracer.Start(ctx, "booking.MechanicsForRequest")
	defer span.End()
	span.SetAttributes(attribute.String("service_request_id", string(req.ID)))

	cs, err := s.repo.ListConfirmations(ctx, req.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list confirmations failed")
		return nil, err
	}
	ids := make([]types.ID, len(cs))
	for i, c := range cs {
		ids[i] = c.MechanicID
	}
	profiles, err := s.finder.GetMany(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: mechanic profiles: %w", err)
	}
	ratings, err := s.repo.AverageRatings(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: average ratings: %w", err)
	}

	out := make([]RankedMechanic, len(cs))
	for i, c := range cs {
		out[i] = RankedMechanic{Confirmation: c, Mechanic: profiles[c.MechanicID]}
		if avg, ok := ratings[c.MechanicID]; ok {
			out[i].AverageRating = &avg
		}
	}
	RankMechanics(out)
	return out, nil
}

// RankMechanics orders by status string ascending, then distance ascending.
func RankMechanics(ms []RankedMechanic) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Status != ms[j].Status {
			return ms[i].Status < ms[j].Status
		}
		return ms[i].DistanceValue < ms[j].DistanceValue
	})
}

func (s *Service) ConfirmBookingWithMechanic(ctx context.Context, cmd ConfirmCommand) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "booking.ConfirmBookingWithMechanic")
	defer span.End()

	res, err := s.state.Confirm(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"service_request_id": cmd.ServiceRequestID,
		"mechanic_id":        cmd.MechanicID,
		"chat_id":            res.ChatID,
	}).Info("booking: confirmed")

	msg := notify.Message{
		Recipient: cmd.MechanicID,
		Event:     notify.EventBookingConfirmed,
		Title:     "Booking confirmed",
		Body:      "A customer confirmed your offer",
		Data: map[string]string{
			"serviceRequestId": string(cmd.ServiceRequestID),
			"chatId":           string(res.ChatID),
		},
	}
	if m, err := s.finder.GetMany(ctx, []types.ID{cmd.MechanicID}); err == nil {
		if p := m[cmd.MechanicID]; p != nil {
			msg.DeviceToken = p.PushToken
		}
	}
	s.notifyDetached(ctx, msg)
	return res, nil
}

func (s *Service) GetServiceRequest(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// notifyDetached delivers outside the caller's lifetime; failures are only logged.
func (s *Service) notifyDetached(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"recipient": msg.Recipient,
				"event":     msg.Event,
			}).Warn("booking: notification failed")
		}
	}()
}
