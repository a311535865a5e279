package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/postgres"
)

const maxSessionKeyLength = 40

type ReserveParams struct {
	PartID     string
	SessionKey string
	Quantity   int
	// TTL overrides the manager default when positive.
	TTL time.Duration
}

// Reservations holds stock for a browsing session without touching the
// ledger. Holds expire on their own; the sweeper only reclaims rows.
type Reservations struct {
	db         *sql.DB
	defaultTTL time.Duration
	now        func() time.Time
}

func NewReservations(db *sql.DB, defaultTTL time.Duration) *Reservations {
	return &Reservations{db: db, defaultTTL: defaultTTL, now: time.Now}
}

func (p ReserveParams) validate() error {
	if _, err := uuid.Parse(p.PartID); err != nil {
		return domain.Invalid("part_id", "must be a UUID")
	}
	if p.Quantity <= 0 || p.Quantity > domain.MaxQuantity {
		return domain.Invalid("quantity", fmt.Sprintf("must be between 1 and %d", domain.MaxQuantity))
	}
	if p.SessionKey == "" {
		return domain.Invalid("session_key", "is required")
	}
	if len(p.SessionKey) > maxSessionKeyLength {
		return domain.Invalid("session_key", fmt.Sprintf("must be at most %d characters", maxSessionKeyLength))
	}
	return nil
}

func (s *Reservations) Reserve(ctx context.Context, p ReserveParams) (*domain.StockReservation, error) {
	ctx, span := tracer.Start(ctx, "inventory.reserve")
	defer span.End()
	span.SetAttributes(attribute.String("part.id", p.PartID), attribute.Int("reservation.quantity", p.Quantity))

	if err := p.validate(); err != nil {
		return nil, err
	}

	ttl := p.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now().UTC()

	reservation := &domain.StockReservation{
		ID:         uuid.New().String(),
		PartID:     p.PartID,
		Quantity:   p.Quantity,
		SessionKey: p.SessionKey,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		part, err := lockPart(ctx, tx, p.PartID)
		if err != nil {
			return err
		}
		if !part.sellable() {
			return &domain.PartUnavailableError{PartID: p.PartID, Reason: "not active or not approved"}
		}

		// Every session's holds count here, including the caller's own.
		available, err := AvailableQuantityTx(ctx, tx, p.PartID, "", now)
		if err != nil {
			return err
		}
		if available < p.Quantity {
			return &domain.InsufficientAvailableStockError{PartID: p.PartID, Requested: p.Quantity, Available: available}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_reservations (id, part_id, quantity, session_key, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, reservation.ID, reservation.PartID, reservation.Quantity, reservation.SessionKey, reservation.CreatedAt, reservation.ExpiresAt)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return reservation, nil
}

// Release drops a single reservation before it expires.
func (s *Reservations) Release(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM stock_reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release reservation %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (s *Reservations) ReleaseSession(ctx context.Context, sessionKey string) (int64, error) {
	if sessionKey == "" {
		return 0, domain.Invalid("session_key", "is required")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM stock_reservations WHERE session_key = $1`, sessionKey)
	if err != nil {
		return 0, fmt.Errorf("release session reservations: %w", err)
	}
	return result.RowsAffected()
}

// SweepExpired deletes holds whose expiry is at or before now.
func (s *Reservations) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM stock_reservations WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep expired reservations: %w", err)
	}
	return result.RowsAffected()
}

func (s *Reservations) ListSession(ctx context.Context, sessionKey string) ([]domain.StockReservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, part_id, quantity, session_key, created_at, expires_at
		FROM stock_reservations
		WHERE session_key = $1 AND expires_at > $2
		ORDER BY created_at
	`, sessionKey, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list session reservations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	reservations := []domain.StockReservation{}
	for rows.Next() {
		var r domain.StockReservation
		if err := rows.Scan(&r.ID, &r.PartID, &r.Quantity, &r.SessionKey, &r.CreatedAt, &r.ExpiresAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reservations, nil
}

// DeleteSessionReservationsTx removes a session's holds on the given parts
// once checkout has consumed them.
func DeleteSessionReservationsTx(ctx context.Context, tx *sql.Tx, sessionKey string, partIDs []string) (int64, error) {
	if sessionKey == "" || len(partIDs) == 0 {
		return 0, nil
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM stock_reservations
		WHERE session_key = $1 AND part_id = ANY($2)
	`, sessionKey, pq.Array(partIDs))
	if err != nil {
		return 0, fmt.Errorf("delete session reservations: %w", err)
	}
	return result.RowsAffected()
}
