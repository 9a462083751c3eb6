// README: Booking state machine: mechanic responses and booking confirmation.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"roadside/internal/types"
)

type StateMachine struct {
	repo Repository
	now  func() time.Time
}

func NewStateMachine(repo Repository) *StateMachine {
	return &StateMachine{repo: repo, now: time.Now}
}

// Respond records a mechanic's answer. A confirmation answers once; later calls
// get ErrAlreadyResponded and leave the first answer in place.
func (m *StateMachine) Respond(ctx context.Context, cmd RespondCommand) (*Confirmation, error) {
	if cmd.MechanicID == "" || cmd.ServiceRequestID == "" {
		return nil, ErrBadRequest
	}
	c, err := m.repo.GetConfirmation(ctx, cmd.ServiceRequestID, cmd.MechanicID)
	if err != nil {
		return nil, err
	}
	if c.Status != ConfirmationPending {
		return nil, ErrAlreadyResponded
	}

	to := ConfirmationRejected
	if cmd.Accepted {
		to = ConfirmationConfirmed
	}
	at := m.now()
	ok, err := m.repo.RespondConfirmation(ctx, cmd.ServiceRequestID, cmd.MechanicID, to, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyResponded
	}
	c.Status = to
	c.RespondedAt = &at
	return c, nil
}

// Confirm books the request with a mechanic that accepted. A request confirms at most once.
func (m *StateMachine) Confirm(ctx context.Context, cmd ConfirmCommand) (*ConfirmResult, error) {
	if cmd.UserID == "" || cmd.ServiceRequestID == "" || cmd.MechanicID == "" {
		return nil, ErrBadRequest
	}
	req, err := m.repo.GetRequest(ctx, cmd.ServiceRequestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != cmd.UserID {
		return nil, ErrNotFound
	}

	c, err := m.repo.GetConfirmation(ctx, cmd.ServiceRequestID, cmd.MechanicID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, ErrMechanicNotAccepted
	case err != nil:
		return nil, err
	case c.Status != ConfirmationConfirmed:
		return nil, ErrMechanicNotAccepted
	}

	if !CanTransition(req.Status, StatusConfirmed) {
		return nil, ErrAlreadyConfirmed
	}
	chat := Chat{
		ID:               types.ID(uuid.NewString()),
		ServiceRequestID: req.ID,
		CreatedAt:        m.now(),
	}
	updated, ok, err := m.repo.ConfirmWithChat(ctx, req.ID, cmd.MechanicID, chat)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyConfirmed
	}
	return &ConfirmResult{ServiceRequest: updated, ChatID: chat.ID}, nil
}
