// README: Booking store backed by PostgreSQL (requests, confirmations, reviews, chats).
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roadside/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const requestColumns = `id, user_id, service_type, origin_lat, origin_lng, description, address,
	status, mechanic_id, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, r *ServiceRequest) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO service_requests (
			id, user_id, service_type, origin_lat, origin_lng, description, address,
			status, mechanic_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		string(r.ID),
		string(r.UserID),
		string(r.ServiceType),
		r.Origin.Lat, r.Origin.Lng,
		r.Description,
		r.Address,
		string(r.Status),
		toStringPtr(r.MechanicID),
		r.CreatedAt,
	)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, string(id))
	return scanRequest(row)
}

// UpdateRequestStatus moves a request only if it is still in from.
func (s *Store) UpdateRequestStatus(ctx context.Context, id types.ID, from, to RequestStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// InsertConfirmations writes all rows in one transaction.
func (s *Store) InsertConfirmations(ctx context.Context, cs []Confirmation) error {
	if len(cs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, c := range cs {
			b.Queue(`
				INSERT INTO mechanic_confirmations (
					id, service_request_id, mechanic_id, status,
					distance_text, distance_value, duration_text, duration_value,
					estimated_cost, currency, responded_at, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				string(c.ID),
				string(c.ServiceRequestID),
				string(c.MechanicID),
				string(c.Status),
				c.DistanceText, c.DistanceValue,
				c.DurationText, c.DurationValue,
				c.EstimatedCost.Amount, c.EstimatedCost.Currency,
				c.RespondedAt,
				c.CreatedAt,
			)
		}
		return tx.SendBatch(ctx, b).Close()
	})
}

const confirmationColumns = `id, service_request_id, mechanic_id, status,
	distance_text, distance_value, duration_text, duration_value,
	estimated_cost, currency, responded_at, created_at`

func (s *Store) GetConfirmation(ctx context.Context, requestID, mechanicID types.ID) (*Confirmation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+confirmationColumns+`
		FROM mechanic_confirmations
		WHERE service_request_id = $1 AND mechanic_id = $2`,
		string(requestID), string(mechanicID),
	)
	c, err := scanConfirmation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// RespondConfirmation sets the response only while the row is still PENDING.
func (s *Store) RespondConfirmation(ctx context.Context, requestID, mechanicID types.ID, to ConfirmationStatus, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE mechanic_confirmations
		SET status = $1, responded_at = $2
		WHERE service_request_id = $3 AND mechanic_id = $4 AND status = $5`,
		string(to), at, string(requestID), string(mechanicID), string(ConfirmationPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListConfirmations returns rows in creation order, ties broken by id.
func (s *Store) ListConfirmations(ctx context.Context, requestID types.ID) ([]Confirmation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+confirmationColumns+`
		FROM mechanic_confirmations
		WHERE service_request_id = $1
		ORDER BY created_at, id`, string(requestID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// AverageRatings omits mechanics without reviews.
func (s *Store) AverageRatings(ctx context.Context, mechanicIDs []types.ID) (map[types.ID]float64, error) {
	out := make(map[types.ID]float64, len(mechanicIDs))
	if len(mechanicIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(mechanicIDs))
	for i, id := range mechanicIDs {
		ids[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT mechanic_id, AVG(rating)::float8
		FROM reviews
		WHERE mechanic_id = ANY($1)
		GROUP BY mechanic_id`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var avg float64
		if err := rows.Scan(&id, &avg); err != nil {
			return nil, err
		}
		out[types.ID(id)] = avg
	}
	return out, rows.Err()
}

// ConfirmWithChat moves the request REQUESTED -> CONFIRMED and creates its chat atomically.
// It reports false when the request was no longer REQUESTED.
func (s *Store) ConfirmWithChat(ctx context.Context, requestID, mechanicID types.ID, chat Chat) (*ServiceRequest, bool, error) {
	var updated *ServiceRequest
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE service_requests
			SET status = $1, mechanic_id = $2, updated_at = NOW()
			WHERE id = $3 AND status = $4
			RETURNING `+requestColumns,
			string(StatusConfirmed), string(mechanicID), string(requestID), string(StatusRequested),
		)
		r, err := scanRequest(row)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO chats (id, service_request_id, created_at)
			VALUES ($1, $2, $3)`,
			string(chat.ID), string(chat.ServiceRequestID), chat.CreatedAt,
		); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return updated, updated != nil, nil
}

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var r ServiceRequest
	var id, userID, serviceType, status string
	var mechanicID *string
	err := row.Scan(
		&id, &userID, &serviceType, &r.Origin.Lat, &r.Origin.Lng, &r.Description, &r.Address,
		&status, &mechanicID, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.ID = types.ID(id)
	r.UserID = types.ID(userID)
	r.ServiceType = types.ServiceType(serviceType)
	r.Status = RequestStatus(status)
	if mechanicID != nil {
		m := types.ID(*mechanicID)
		r.MechanicID = &m
	}
	return &r, nil
}

func scanConfirmation(row pgx.Row) (*Confirmation, error) {
	var c Confirmation
	var id, requestID, mechanicID, status string
	err := row.Scan(
		&id, &requestID, &mechanicID, &status,
		&c.DistanceText, &c.DistanceValue, &c.DurationText, &c.DurationValue,
		&c.EstimatedCost.Amount, &c.EstimatedCost.Currency, &c.RespondedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID = types.ID(id)
	c.ServiceRequestID = types.ID(requestID)
	c.MechanicID = types.ID(mechanicID)
	c.Status = ConfirmationStatus(status)
	return &c, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
