// README: Service request and per-mechanic confirmation aggregates with their status flows.
package booking

import (
	"time"

	"roadside/internal/modules/discovery"
	"roadside/internal/types"
)

type RequestStatus string

const (
	StatusRequested        RequestStatus = "REQUESTED"
	StatusNoMechanicsFound RequestStatus = "NO_MECHANICS_FOUND"
	StatusConfirmed        RequestStatus = "CONFIRMED"
	StatusInProgress       RequestStatus = "IN_PROGRESS"
	StatusCompleted        RequestStatus = "COMPLETED"
	StatusCancelled        RequestStatus = "CANCELLED"
)

type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "PENDING"
	ConfirmationConfirmed ConfirmationStatus = "CONFIRMED"
	ConfirmationRejected  ConfirmationStatus = "REJECTED"
)

// AllowedTransitions is forward-only; nothing returns to REQUESTED.
var AllowedTransitions = map[RequestStatus][]RequestStatus{
	StatusRequested:  {StatusNoMechanicsFound, StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to RequestStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ServiceRequest.MechanicID is set exactly when the request has been confirmed.
type ServiceRequest struct {
	ID          types.ID
	UserID      types.ID
	ServiceType types.ServiceType
	Origin      types.Point
	Description string
	Address     *string
	Status      RequestStatus
	MechanicID  *types.ID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Confirmation is the persisted offer for one (request, mechanic) pair.
type Confirmation struct {
	ID               types.ID
	ServiceRequestID types.ID
	MechanicID       types.ID
	Status           ConfirmationStatus
	DistanceText     string
	DistanceValue    float64
	DurationText     string
	DurationValue    float64
	EstimatedCost    types.Money
	RespondedAt      *time.Time
	CreatedAt        time.Time
}

type Offer struct {
	MechanicID    types.ID
	Name          string
	DistanceText  string
	DistanceValue float64
	DurationText  string
	DurationValue float64
	Cost          types.Money

	pushToken string
}

type RankedMechanic struct {
	Confirmation
	Mechanic      *discovery.Mechanic
	AverageRating *float64
}

type Chat struct {
	ID               types.ID
	ServiceRequestID types.ID
	CreatedAt        time.Time
}

type InitiateCommand struct {
	UserID      types.ID
	ServiceType types.ServiceType
	Origin      types.Point
	Description string
	Address     *string
}

type InitiateResult struct {
	ServiceRequestID types.ID
	Offers           []Offer
}

type RespondCommand struct {
	MechanicID       types.ID
	ServiceRequestID types.ID
	Accepted         bool
}

type ConfirmCommand struct {
	UserID           types.ID
	ServiceRequestID types.ID
	MechanicID       types.ID
}

type ConfirmResult struct {
	ServiceRequest *ServiceRequest
	ChatID         types.ID
}
