// Package quotes archives submitted configurations in Postgres so deliveries
// can be audited and retried.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/camper-configurator/internal/aggregate"
)

// Status values stored in quotes.status.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

var (
	// ErrNotFound is returned when no quote has the requested id.
	ErrNotFound = errors.New("quote not found")
	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("quote id invalid")
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is one archived submission.
type Record struct {
	ID          string
	SessionID   string
	Product     string
	Country     string
	Codes       []string
	TotalGross  float64
	Payload     aggregate.Payload
	Status      string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// NewRecord prepares a pending record for a payload.
func NewRecord(sessionID string, p aggregate.Payload) Record {
	return Record{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Product:    p.Product,
		Country:    p.Country,
		Codes:      append([]string(nil), p.Codes...),
		TotalGross: p.TotalGross,
		Payload:    p,
		Status:     StatusPending,
		CreatedAt:  p.Timestamp,
	}
}

// Store persists quotes.
type Store struct {
	DB  DB
	Now func() time.Time
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const insertQuote = `INSERT INTO quotes (id, session_id, product, country, mo_codes, total_gross, payload, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Save inserts a pending quote.
func (s *Store) Save(ctx context.Context, r Record) error {
	id, err := uuidValue(r.ID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	status := r.Status
	if status == "" {
		status = StatusPending
	}
	if _, err := s.DB.Exec(ctx, insertQuote, id, r.SessionID, r.Product, r.Country, r.Codes, r.TotalGross, body, status, r.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

const markDelivered = `UPDATE quotes SET status = $2, attempts = attempts + 1, last_error = NULL, delivered_at = $3 WHERE id = $1`

// MarkDelivered records a successful delivery.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	return s.update(ctx, markDelivered, id, StatusDelivered, s.now().UTC())
}

const markFailed = `UPDATE quotes SET status = $2, attempts = attempts + 1, last_error = $3 WHERE id = $1`

// MarkFailed records a failed delivery attempt.
func (s *Store) MarkFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx, markFailed, id, StatusFailed, msg)
}

func (s *Store) update(ctx context.Context, sql, id string, args ...any) error {
	uid, err := uuidValue(id)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, sql, append([]any{uid}, args...)...)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectQuote = `SELECT id, session_id, product, country, mo_codes, total_gross::float8, payload, status, attempts, COALESCE(last_error, ''), created_at, delivered_at
FROM quotes WHERE id = $1`

// Get loads a quote by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	uid, err := uuidValue(id)
	if err != nil {
		return Record{}, err
	}
	var (
		r         Record
		rowID     pgtype.UUID
		body      []byte
		delivered pgtype.Timestamptz
	)
	err = s.DB.QueryRow(ctx, selectQuote, uid).Scan(
		&rowID, &r.SessionID, &r.Product, &r.Country, &r.Codes, &r.TotalGross,
		&body, &r.Status, &r.Attempts, &r.LastError, &r.CreatedAt, &delivered,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load quote: %w", err)
	}
	r.ID = uuid.UUID(rowID.Bytes).String()
	if err := json.Unmarshal(body, &r.Payload); err != nil {
		return Record{}, fmt.Errorf("decode payload: %w", err)
	}
	if delivered.Valid {
		at := delivered.Time
		r.DeliveredAt = &at
	}
	return r, nil
}

func uuidValue(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}
