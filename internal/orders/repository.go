package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/inventory"
	"github.com/joao-fontenele/partsmarket/internal/postgres"
)

var (
	tracer = otel.Tracer("orders")
	meter  = otel.Meter("orders")
)

type OrderRepository struct {
	db       *sql.DB
	now      func() time.Time
	placed   metric.Int64Counter
	rejected metric.Int64Counter
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed"))
	if err != nil {
		otel.Handle(err)
	}
	rejected, err := meter.Int64Counter("orders.rejected",
		metric.WithDescription("Order placements rejected, by reason"))
	if err != nil {
		otel.Handle(err)
	}

	return &OrderRepository{
		db:       db,
		now:      time.Now,
		placed:   placed,
		rejected: rejected,
	}
}

type PlaceOrderParams struct {
	UserID     string
	SessionKey string
	Items      []ItemRequest
	Notes      string
}

type Placement struct {
	Order         *domain.Order
	CustomerEmail string
	// StockAlerts lists parts this order pushed into low or out of stock.
	StockAlerts []domain.LowStockEvent
}

type pricedPart struct {
	id             string
	price          decimal.Decimal
	traderID       string
	commissionRate decimal.Decimal
	isActive       bool
	approved       bool
}

// lockPartsTx locks every requested part in ascending id order and
// snapshots price and the supplier's commission rate.
func lockPartsTx(ctx context.Context, tx *sql.Tx, ids []string) (map[string]pricedPart, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT p.id, p.price, p.trader_id, COALESCE(tp.commission_rate, $2), p.is_active, p.approved
		FROM parts p
		LEFT JOIN trader_profiles tp ON tp.user_id = p.trader_id
		WHERE p.id = ANY($1)
		ORDER BY p.id
		FOR UPDATE OF p
	`, pq.Array(ids), domain.DefaultCommissionRate)
	if err != nil {
		return nil, fmt.Errorf("lock parts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	parts := make(map[string]pricedPart, len(ids))
	for rows.Next() {
		var p pricedPart
		if err := rows.Scan(&p.id, &p.price, &p.traderID, &p.commissionRate, &p.isActive, &p.approved); err != nil {
			return nil, err
		}
		parts[p.id] = p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return parts, nil
}

func customerEmailTx(ctx context.Context, q postgres.Querier, userID string) (string, error) {
	var email string
	err := q.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.Invalid("user_id", "unknown customer")
		}
		return "", fmt.Errorf("look up customer: %w", err)
	}
	return email, nil
}

// PlaceOrder validates every line, creates the order, deducts stock and
// consumes the session's reservations in one transaction. Any failure
// leaves stock, logs and reservations untouched.
func (r *OrderRepository) PlaceOrder(ctx context.Context, p PlaceOrderParams) (*Placement, error) {
	ctx, span := tracer.Start(ctx, "orders.place")
	defer span.End()

	placement, err := r.placeOrder(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.count(ctx, r.rejected, attribute.String("reason", rejectionReason(err)))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", placement.Order.ID),
		attribute.Int("order.items", len(placement.Order.Items)),
	)
	r.count(ctx, r.placed)
	return placement, nil
}

func (r *OrderRepository) placeOrder(ctx context.Context, p PlaceOrderParams) (*Placement, error) {
	if _, err := uuid.Parse(p.UserID); err != nil {
		return nil, domain.Invalid("user_id", "must be a UUID")
	}
	items, err := normalizeItems(p.Items)
	if err != nil {
		return nil, err
	}

	placement := &Placement{}
	err = postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		email, err := customerEmailTx(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		placement.CustomerEmail = email

		parts, err := lockPartsTx(ctx, tx, partIDs(items))
		if err != nil {
			return err
		}

		now := r.now()
		for _, item := range items {
			part, ok := parts[item.PartID]
			switch {
			case !ok:
				return &domain.PartUnavailableError{PartID: item.PartID, Reason: "does not exist"}
			case !part.isActive:
				return &domain.PartUnavailableError{PartID: item.PartID, Reason: "not active"}
			case !part.approved:
				return &domain.PartUnavailableError{PartID: item.PartID, Reason: "not approved"}
			}

			available, err := inventory.AvailableQuantityTx(ctx, tx, item.PartID, p.SessionKey, now)
			if err != nil {
				return err
			}
			if available < item.Quantity {
				return &domain.InsufficientStockError{PartID: item.PartID, Requested: item.Quantity, Available: available}
			}
		}

		order := &domain.Order{
			ID:     uuid.New().String(),
			UserID: p.UserID,
			Status: domain.OrderStatusPending,
			Notes:  p.Notes,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (id, user_id, status, notes)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`, order.ID, order.UserID, order.Status, order.Notes).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range items {
			part := parts[item.PartID]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, part_id, supplier_id, quantity, price, commission_rate)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.New().String(), order.ID, item.PartID, part.traderID, item.Quantity, part.price, part.commissionRate); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}

			result, err := inventory.AdjustTx(ctx, tx, inventory.AdjustParams{
				PartID:  item.PartID,
				Delta:   -item.Quantity,
				LogType: domain.LogTypeAdjustment,
				Actor:   p.UserID,
				Notes:   fmt.Sprintf("Order %s deduction", order.ID),
			})
			if err != nil {
				return err
			}
			if result.LowStock != nil {
				placement.StockAlerts = append(placement.StockAlerts, *result.LowStock)
			}
		}

		if order.Items, err = loadItems(ctx, tx, order.ID); err != nil {
			return err
		}
		order.Recompute()

		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET total = $2, commission = $3
			WHERE id = $1
		`, order.ID, order.Total, order.Commission); err != nil {
			return fmt.Errorf("store order totals: %w", err)
		}

		if _, err := inventory.DeleteSessionReservationsTx(ctx, tx, p.SessionKey, partIDs(items)); err != nil {
			return err
		}

		placement.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return placement, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrPartUnavailable):
		return "part_unavailable"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	}
	return "error"
}

func (r *OrderRepository) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

const orderColumns = `id, user_id, status, total, commission, tracking_number, notes, created_at, updated_at`

func scanOrder(s interface{ Scan(...any) error }, o *domain.Order) error {
	return s.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.Commission, &o.TrackingNumber, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
}

func loadItems(ctx context.Context, q postgres.Querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, part_id, supplier_id, quantity, price, commission_rate
		FROM order_items
		WHERE order_id = $1
		ORDER BY part_id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []domain.OrderItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanItem(s interface{ Scan(...any) error }) (domain.OrderItem, error) {
	var (
		item       domain.OrderItem
		supplierID sql.NullString
	)
	err := s.Scan(&item.ID, &item.OrderID, &item.PartID, &supplierID, &item.Quantity, &item.Price, &item.CommissionRate)
	item.SupplierID = supplierID.String
	return item, err
}

// LockTx loads an order without items and holds its row lock until tx ends.
func LockTx(ctx context.Context, tx *sql.Tx, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}

	order := &domain.Order{}
	err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("lock order %s: %w", id, err)
	}
	return order, nil
}

func SetTrackingNumberTx(ctx context.Context, tx *sql.Tx, id, trackingNumber string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET tracking_number = $2, updated_at = NOW()
		WHERE id = $1
	`, id, trackingNumber); err != nil {
		return fmt.Errorf("set tracking number: %w", err)
	}
	return nil
}

type StatusChange struct {
	Order         *domain.Order
	From          domain.OrderStatus
	CustomerEmail string
}

// UpdateStatus moves an order through its state machine. Cancelling books
// a compensating restock for every line in the same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus, actor string) (*StatusChange, error) {
	ctx, span := tracer.Start(ctx, "orders.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.status", string(to)))

	if !to.Valid() {
		return nil, domain.Invalid("status", "must be one of PENDING PROCESSING SHIPPED DELIVERED CANCELLED")
	}

	change := &StatusChange{}
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		order, err := LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		change.From = order.Status

		if err := domain.ValidateOrderTransition(id, order.Status, to); err != nil {
			return err
		}

		if order.Items, err = loadItems(ctx, tx, id); err != nil {
			return err
		}

		if to == domain.OrderStatusCancelled {
			if err := restockItemsTx(ctx, tx, order, actor); err != nil {
				return err
			}
		}

		if err := tx.QueryRowContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, id, to).Scan(&order.UpdatedAt); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		order.Status = to

		if change.CustomerEmail, err = customerEmailTx(ctx, tx, order.UserID); err != nil {
			return err
		}
		change.Order = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return change, nil
}

func restockItemsTx(ctx context.Context, tx *sql.Tx, order *domain.Order, actor string) error {
	items := append([]domain.OrderItem(nil), order.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].PartID < items[j].PartID })

	for _, item := range items {
		if _, err := inventory.AdjustTx(ctx, tx, inventory.AdjustParams{
			PartID:  item.PartID,
			Delta:   item.Quantity,
			LogType: domain.LogTypeAdjustment,
			Actor:   actor,
			Notes:   fmt.Sprintf("Order %s cancellation restock", order.ID),
		}); err != nil {
			return err
		}
	}
	return nil
}

type StatusOutcome struct {
	OrderID string             `json:"order_id"`
	From    domain.OrderStatus `json:"from,omitempty"`
	To      domain.OrderStatus `json:"to"`
	Error   string             `json:"error,omitempty"`

	change *StatusChange
}

// BatchUpdateStatus applies UpdateStatus to each order independently.
func (r *OrderRepository) BatchUpdateStatus(ctx context.Context, ids []string, to domain.OrderStatus, actor string) []StatusOutcome {
	outcomes := make([]StatusOutcome, 0, len(ids))
	for _, id := range ids {
		outcome := StatusOutcome{OrderID: id, To: to}
		change, err := r.UpdateStatus(ctx, id, to, actor)
		if err != nil {
			outcome.Error = err.Error()
		} else {
			outcome.From = change.From
			outcome.change = change
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Change returns the applied transition, or nil when the order failed.
func (o StatusOutcome) Change() *StatusChange {
	return o.change
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}

	order := &domain.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	if order.Items, err = loadItems(ctx, r.db, id); err != nil {
		return nil, err
	}

	return order, nil
}

type ListFilter struct {
	UserID string
	Status domain.OrderStatus
	Limit  int
	Offset int
}

// List returns orders newest first, loading all their items in one query.
func (r *OrderRepository) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	if f.UserID != "" {
		if _, err := uuid.Parse(f.UserID); err != nil {
			return nil, domain.Invalid("user_id", "must be a UUID")
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Invalid("status", "unknown order status")
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, f.UserID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, part_id, supplier_id, quantity, price, commission_rate
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY part_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

type SupplierItem struct {
	domain.OrderItem
	OrderStatus domain.OrderStatus `json:"order_status"`
	OrderedAt   time.Time          `json:"ordered_at"`
	LineTotal   decimal.Decimal    `json:"line_total"`
	Commission  decimal.Decimal    `json:"commission"`
}

// ItemsBySupplier lists a trader's order lines with their per-line
// commission, newest orders first.
func (r *OrderRepository) ItemsBySupplier(ctx context.Context, supplierID string) ([]SupplierItem, error) {
	if _, err := uuid.Parse(supplierID); err != nil {
		return nil, domain.Invalid("supplier_id", "must be a UUID")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.part_id, i.supplier_id, i.quantity, i.price, i.commission_rate,
		       o.status, o.created_at
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.supplier_id = $1
		ORDER BY o.created_at DESC, i.id
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list supplier items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []SupplierItem{}
	for rows.Next() {
		var (
			si       SupplierItem
			supplier sql.NullString
		)
		if err := rows.Scan(&si.ID, &si.OrderID, &si.PartID, &supplier, &si.Quantity, &si.Price, &si.CommissionRate,
			&si.OrderStatus, &si.OrderedAt); err != nil {
			return nil, err
		}
		si.SupplierID = supplier.String
		si.LineTotal = si.OrderItem.LineTotal().Round(2)
		si.Commission = si.OrderItem.Commission().Round(2)
		items = append(items, si)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
