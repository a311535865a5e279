package fulfillment

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/orders"
	"github.com/joao-fontenele/partsmarket/internal/postgres"
)

type Tracker struct {
	db  *sql.DB
	now func() time.Time
}

func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db, now: time.Now}
}

type RecordPaymentParams struct {
	OrderID       string
	Amount        decimal.Decimal
	PaymentMethod string
	TransactionID string
}

// RecordPayment attaches the single payment an order may have. The amount
// must equal the order total exactly.
func (t *Tracker) RecordPayment(ctx context.Context, p RecordPaymentParams) (*domain.Payment, error) {
	if strings.TrimSpace(p.PaymentMethod) == "" {
		return nil, domain.Invalid("payment_method", "is required")
	}

	payment := &domain.Payment{
		ID:            uuid.New().String(),
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		Status:        domain.PaymentStatusPending,
		TransactionID: p.TransactionID,
	}
	if payment.TransactionID == "" {
		payment.TransactionID = uuid.New().String()
	}

	err := postgres.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		order, err := orders.LockTx(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCancelled {
			return &domain.InvalidTransitionError{Resource: "payment", OrderID: p.OrderID, From: string(order.Status), To: string(domain.PaymentStatusPending)}
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)`, p.OrderID).Scan(&exists); err != nil {
			return fmt.Errorf("check existing payment: %w", err)
		}
		if exists {
			return &domain.DuplicateResourceError{Resource: "payment", OrderID: p.OrderID}
		}

		if !p.Amount.Equal(order.Total) {
			return &domain.AmountMismatchError{OrderID: p.OrderID, Expected: order.Total, Got: p.Amount}
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO payments (id, order_id, amount, payment_method, status, transaction_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`, payment.ID, payment.OrderID, payment.Amount, payment.PaymentMethod, payment.Status, payment.TransactionID,
		).Scan(&payment.CreatedAt, &payment.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return &domain.DuplicateResourceError{Resource: "payment", OrderID: p.OrderID}
			}
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

const paymentColumns = `id, order_id, amount, payment_method, status, transaction_id, created_at, updated_at`

func scanPayment(s interface{ Scan(...any) error }) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := s.Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaymentMethod, &p.Status, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *Tracker) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, domain.ErrNotFound)
	}

	payment, err := scanPayment(t.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment for order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// UpdatePaymentStatus settles a pending payment as completed or failed.
func (t *Tracker) UpdatePaymentStatus(ctx context.Context, orderID string, to domain.PaymentStatus) (*domain.Payment, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, domain.ErrNotFound)
	}

	var payment *domain.Payment
	err := postgres.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		var err error
		payment, err = scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("payment for order %s: %w", orderID, domain.ErrNotFound)
			}
			return fmt.Errorf("lock payment: %w", err)
		}

		if !payment.Status.CanTransition(to) {
			return &domain.InvalidTransitionError{Resource: "payment", OrderID: orderID, From: string(payment.Status), To: string(to)}
		}

		if err := tx.QueryRowContext(ctx, `
			UPDATE payments SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, payment.ID, to).Scan(&payment.UpdatedAt); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		payment.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	return payment, nil
}

type CreateShipmentParams struct {
	OrderID           string
	Carrier           string
	Address           *string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// NewTrackingNumber returns a random tracking reference like TRK-9F86D081884C.
func NewTrackingNumber() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "TRK-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
	}
	return "TRK-" + strings.ToUpper(hex.EncodeToString(b))
}

// resolveAddress prefers the explicit address and falls back to the
// customer's location.
func resolveAddress(explicit *string, loc *domain.Location) string {
	if explicit != nil {
		if a := strings.TrimSpace(*explicit); a != "" {
			return a
		}
	}
	if loc != nil {
		return loc.Address()
	}
	return ""
}

func customerLocationTx(ctx context.Context, tx *sql.Tx, userID string) (*domain.Location, error) {
	var country, city, state, street sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT l.country, l.city, l.state, l.street
		FROM users u
		LEFT JOIN locations l ON l.id = u.location_id
		WHERE u.id = $1
	`, userID).Scan(&country, &city, &state, &street)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("look up customer location: %w", err)
	}
	if !country.Valid {
		return nil, nil
	}
	return &domain.Location{
		Country: country.String,
		City:    city.String,
		State:   state.String,
		Street:  street.String,
	}, nil
}

// CreateShipment opens the order's single shipment and copies its tracking
// number onto the order.
func (t *Tracker) CreateShipment(ctx context.Context, p CreateShipmentParams) (*domain.Shipping, error) {
	if strings.TrimSpace(p.Carrier) == "" {
		return nil, domain.Invalid("carrier", "is required")
	}

	shipment := &domain.Shipping{
		ID:                uuid.New().String(),
		OrderID:           p.OrderID,
		Carrier:           p.Carrier,
		Status:            domain.ShippingStatusPending,
		TrackingNumber:    p.TrackingNumber,
		EstimatedDelivery: p.EstimatedDelivery,
	}
	if shipment.TrackingNumber == "" {
		shipment.TrackingNumber = NewTrackingNumber()
	}

	err := postgres.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		order, err := orders.LockTx(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCancelled {
			return &domain.InvalidTransitionError{Resource: "shipment", OrderID: p.OrderID, From: string(order.Status), To: string(domain.ShippingStatusPending)}
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM shippings WHERE order_id = $1)`, p.OrderID).Scan(&exists); err != nil {
			return fmt.Errorf("check existing shipment: %w", err)
		}
		if exists {
			return &domain.DuplicateResourceError{Resource: "shipment", OrderID: p.OrderID}
		}

		loc, err := customerLocationTx(ctx, tx, order.UserID)
		if err != nil {
			return err
		}
		shipment.ShippingAddress = resolveAddress(p.Address, loc)
		if shipment.ShippingAddress == "" {
			return &domain.MissingAddressError{OrderID: p.OrderID}
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO shippings (id, order_id, carrier, status, tracking_number, estimated_delivery, shipping_address)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, shipment.ID, shipment.OrderID, shipment.Carrier, shipment.Status, shipment.TrackingNumber,
			shipment.EstimatedDelivery, shipment.ShippingAddress,
		).Scan(&shipment.CreatedAt, &shipment.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return &domain.DuplicateResourceError{Resource: "shipment", OrderID: p.OrderID}
			}
			return fmt.Errorf("insert shipment: %w", err)
		}

		return orders.SetTrackingNumberTx(ctx, tx, p.OrderID, shipment.TrackingNumber)
	})
	if err != nil {
		return nil, err
	}

	return shipment, nil
}

const shipmentColumns = `id, order_id, carrier, status, tracking_number, estimated_delivery, shipping_address, created_at, updated_at`

func scanShipment(s interface{ Scan(...any) error }) (*domain.Shipping, error) {
	var (
		sh        domain.Shipping
		estimated sql.NullTime
	)
	err := s.Scan(&sh.ID, &sh.OrderID, &sh.Carrier, &sh.Status, &sh.TrackingNumber, &estimated, &sh.ShippingAddress, &sh.CreatedAt, &sh.UpdatedAt)
	if estimated.Valid {
		sh.EstimatedDelivery = &estimated.Time
	}
	return &sh, err
}

func (t *Tracker) GetShipment(ctx context.Context, orderID string) (*domain.Shipping, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("shipment for order %s: %w", orderID, domain.ErrNotFound)
	}

	shipment, err := scanShipment(t.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shippings WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("shipment for order %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	return shipment, nil
}

func (t *Tracker) UpdateShipmentStatus(ctx context.Context, orderID string, to domain.ShippingStatus) (*domain.Shipping, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fmt.Errorf("shipment for order %s: %w", orderID, domain.ErrNotFound)
	}

	var shipment *domain.Shipping
	err := postgres.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		var err error
		shipment, err = scanShipment(tx.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shippings WHERE order_id = $1 FOR UPDATE`, orderID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("shipment for order %s: %w", orderID, domain.ErrNotFound)
			}
			return fmt.Errorf("lock shipment: %w", err)
		}

		if !shipment.Status.CanTransition(to) {
			return &domain.InvalidTransitionError{Resource: "shipment", OrderID: orderID, From: string(shipment.Status), To: string(to)}
		}

		if err := tx.QueryRowContext(ctx, `
			UPDATE shippings SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, shipment.ID, to).Scan(&shipment.UpdatedAt); err != nil {
			return fmt.Errorf("update shipment status: %w", err)
		}
		shipment.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	return shipment, nil
}
