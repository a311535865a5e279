package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/postgres"
)

var (
	tracer = otel.Tracer("inventory")
	meter  = otel.Meter("inventory")
)

type AdjustParams struct {
	PartID  string
	Delta   int
	LogType domain.LogType
	Actor   string
	Notes   string
}

func (p AdjustParams) validate() error {
	if _, err := uuid.Parse(p.PartID); err != nil {
		return domain.Invalid("part_id", "must be a UUID")
	}
	if p.Delta == 0 {
		return domain.Invalid("quantity", "must not be zero")
	}
	if p.Delta > domain.MaxQuantity || p.Delta < -domain.MaxQuantity {
		return domain.Invalid("quantity", fmt.Sprintf("must be between -%d and %d", domain.MaxQuantity, domain.MaxQuantity))
	}
	if !p.LogType.Valid() {
		return domain.Invalid("log_type", "must be one of NEW RESTOCK ADJUSTMENT")
	}
	if p.Actor != "" {
		if _, err := uuid.Parse(p.Actor); err != nil {
			return domain.Invalid("actor", "must be a UUID")
		}
	}
	return nil
}

type AdjustResult struct {
	NewQuantity int                 `json:"new_quantity"`
	StockStatus domain.StockStatus  `json:"stock_status"`
	Log         domain.InventoryLog `json:"log"`
	// LowStock is set when a deduction moved the part into a worse
	// stock status than it had before.
	LowStock *domain.LowStockEvent `json:"-"`
}

type lockedPart struct {
	id                string
	sku               string
	name              string
	traderID          string
	traderEmail       string
	quantity          int
	lowStockThreshold int
	reorderQuantity   int
	isActive          bool
	approved          bool
}

func (p lockedPart) sellable() bool {
	return p.isActive && p.approved
}

// lockPart takes the row lock every stock mutation serializes on.
func lockPart(ctx context.Context, q postgres.Querier, partID string) (*lockedPart, error) {
	p := &lockedPart{id: partID}
	err := q.QueryRowContext(ctx, `
		SELECT p.sku, p.name, p.trader_id, u.email, p.quantity,
		       p.low_stock_threshold, p.reorder_quantity, p.is_active, p.approved
		FROM parts p
		JOIN users u ON u.id = p.trader_id
		WHERE p.id = $1
		FOR UPDATE OF p
	`, partID).Scan(&p.sku, &p.name, &p.traderID, &p.traderEmail, &p.quantity,
		&p.lowStockThreshold, &p.reorderQuantity, &p.isActive, &p.approved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || postgres.IsInvalidText(err) {
			return nil, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("lock part %s: %w", partID, err)
	}
	return p, nil
}

// AdjustTx applies a signed stock change and appends its log entry inside
// the caller's transaction. The part row stays locked until tx ends.
func AdjustTx(ctx context.Context, tx *sql.Tx, p AdjustParams) (*AdjustResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	part, err := lockPart(ctx, tx, p.PartID)
	if err != nil {
		return nil, err
	}

	newQuantity := part.quantity + p.Delta
	if newQuantity < 0 {
		return nil, &domain.InsufficientStockError{PartID: p.PartID, Requested: -p.Delta, Available: part.quantity}
	}
	if newQuantity > domain.MaxQuantity {
		return nil, domain.Invalid("quantity", fmt.Sprintf("stock would exceed %d units", domain.MaxQuantity))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE parts SET quantity = $2, updated_at = NOW()
		WHERE id = $1
	`, p.PartID, newQuantity); err != nil {
		return nil, fmt.Errorf("update quantity for part %s: %w", p.PartID, err)
	}

	entry := domain.InventoryLog{
		ID:        uuid.New().String(),
		PartID:    p.PartID,
		Quantity:  p.Delta,
		LogType:   p.LogType,
		Notes:     p.Notes,
		CreatedBy: p.Actor,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO inventory_logs (id, part_id, quantity, log_type, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, entry.ID, entry.PartID, entry.Quantity, entry.LogType, entry.Notes, postgres.NullString(entry.CreatedBy)).Scan(&entry.CreatedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, domain.Invalid("actor", "unknown user")
		}
		return nil, fmt.Errorf("append inventory log for part %s: %w", p.PartID, err)
	}

	result := &AdjustResult{
		NewQuantity: newQuantity,
		StockStatus: domain.StockStatusFor(newQuantity, part.lowStockThreshold),
		Log:         entry,
	}
	result.LowStock = lowStockAlert(part, newQuantity)
	return result, nil
}

// lowStockAlert returns an event when quantity fell into a worse stock
// status. Increases and moves within the same status produce nothing.
func lowStockAlert(part *lockedPart, newQuantity int) *domain.LowStockEvent {
	before := domain.StockStatusFor(part.quantity, part.lowStockThreshold)
	after := domain.StockStatusFor(newQuantity, part.lowStockThreshold)
	if newQuantity >= part.quantity || after == domain.StockStatusIn || after == before {
		return nil
	}
	return &domain.LowStockEvent{
		PartID:            part.id,
		SKU:               part.sku,
		Name:              part.name,
		TraderID:          part.traderID,
		TraderEmail:       part.traderEmail,
		Quantity:          newQuantity,
		LowStockThreshold: part.lowStockThreshold,
		ReorderQuantity:   part.reorderQuantity,
		StockStatus:       after,
		Timestamp:         time.Now().UTC(),
	}
}

type Ledger struct {
	db          *sql.DB
	now         func() time.Time
	adjustments metric.Int64Counter
	rejections  metric.Int64Counter
}

func NewLedger(db *sql.DB) *Ledger {
	adjustments, err := meter.Int64Counter("inventory.adjustments",
		metric.WithDescription("Stock adjustments committed, by log type"))
	if err != nil {
		otel.Handle(err)
	}
	rejections, err := meter.Int64Counter("inventory.adjustments.rejected",
		metric.WithDescription("Stock adjustments rejected for insufficient stock"))
	if err != nil {
		otel.Handle(err)
	}

	return &Ledger{
		db:          db,
		now:         time.Now,
		adjustments: adjustments,
		rejections:  rejections,
	}
}

// Adjust applies one stock change in its own transaction.
func (l *Ledger) Adjust(ctx context.Context, p AdjustParams) (*AdjustResult, error) {
	ctx, span := tracer.Start(ctx, "inventory.adjust")
	defer span.End()
	span.SetAttributes(
		attribute.String("part.id", p.PartID),
		attribute.Int("inventory.delta", p.Delta),
		attribute.String("inventory.log_type", string(p.LogType)),
	)

	var result *AdjustResult
	err := postgres.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		result, err = AdjustTx(ctx, tx, p)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			l.record(ctx, l.rejections, p.LogType)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	l.record(ctx, l.adjustments, p.LogType)
	return result, nil
}

func (l *Ledger) record(ctx context.Context, c metric.Int64Counter, logType domain.LogType) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("log_type", string(logType))))
	}
}

func (l *Ledger) Restock(ctx context.Context, partID string, quantity int, actor string) (*AdjustResult, error) {
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return nil, domain.Invalid("quantity", fmt.Sprintf("must be between 1 and %d", domain.MaxQuantity))
	}
	return l.Adjust(ctx, AdjustParams{
		PartID:  partID,
		Delta:   quantity,
		LogType: domain.LogTypeRestock,
		Actor:   actor,
		Notes:   fmt.Sprintf("Restocked %d units", quantity),
	})
}

type RestockOutcome struct {
	PartID      string `json:"part_id"`
	Restocked   int    `json:"restocked"`
	NewQuantity int    `json:"new_quantity"`
	Error       string `json:"error,omitempty"`
}

// BatchRestock tops up each part by its reorder quantity. Parts are
// processed in their own transactions, so one failure does not roll back
// the others.
func (l *Ledger) BatchRestock(ctx context.Context, partIDs []string, actor string) []RestockOutcome {
	outcomes := make([]RestockOutcome, 0, len(partIDs))
	for _, partID := range partIDs {
		outcome := RestockOutcome{PartID: partID}

		err := postgres.WithTx(ctx, l.db, func(tx *sql.Tx) error {
			if _, err := uuid.Parse(partID); err != nil {
				return domain.Invalid("part_id", "must be a UUID")
			}
			part, err := lockPart(ctx, tx, partID)
			if err != nil {
				return err
			}
			if part.reorderQuantity <= 0 {
				return domain.Invalid("reorder_quantity", "must be positive to restock")
			}
			result, err := AdjustTx(ctx, tx, AdjustParams{
				PartID:  partID,
				Delta:   part.reorderQuantity,
				LogType: domain.LogTypeRestock,
				Actor:   actor,
				Notes:   fmt.Sprintf("Restocked %d units", part.reorderQuantity),
			})
			if err != nil {
				return err
			}
			outcome.Restocked = part.reorderQuantity
			outcome.NewQuantity = result.NewQuantity
			return nil
		})
		if err != nil {
			outcome.Error = err.Error()
		} else {
			l.record(ctx, l.adjustments, domain.LogTypeRestock)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// AvailableQuantity reports stock net of unexpired reservations.
func (l *Ledger) AvailableQuantity(ctx context.Context, partID string) (*domain.StockLevel, error) {
	if _, err := uuid.Parse(partID); err != nil {
		return nil, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
	}

	var quantity, threshold, reserved int
	err := l.db.QueryRowContext(ctx, `
		SELECT p.quantity, p.low_stock_threshold,
		       COALESCE((SELECT SUM(r.quantity) FROM stock_reservations r
		                 WHERE r.part_id = p.id AND r.expires_at > $2), 0)
		FROM parts p
		WHERE p.id = $1
	`, partID, l.now().UTC()).Scan(&quantity, &threshold, &reserved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get stock for part %s: %w", partID, err)
	}

	level := domain.NewStockLevel(partID, quantity, threshold, reserved)
	return &level, nil
}

// AvailableQuantityTx computes availability inside tx. Holds owned by
// excludeSession are not subtracted, so a checkout can consume its own
// reservations. The caller is expected to hold the part lock.
func AvailableQuantityTx(ctx context.Context, tx *sql.Tx, partID, excludeSession string, now time.Time) (int, error) {
	var quantity, reserved int
	err := tx.QueryRowContext(ctx, `
		SELECT p.quantity,
		       COALESCE((SELECT SUM(r.quantity) FROM stock_reservations r
		                 WHERE r.part_id = p.id AND r.expires_at > $2 AND r.session_key <> $3), 0)
		FROM parts p
		WHERE p.id = $1
	`, partID, now.UTC(), excludeSession).Scan(&quantity, &reserved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("available quantity for part %s: %w", partID, err)
	}
	return domain.Available(quantity, reserved), nil
}

// History lists a part's log entries, newest first.
func (l *Ledger) History(ctx context.Context, partID string, limit int) ([]domain.InventoryLog, error) {
	if _, err := uuid.Parse(partID); err != nil {
		return nil, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, part_id, quantity, log_type, notes, created_by, created_at
		FROM inventory_logs
		WHERE part_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, partID, limit)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	logs := []domain.InventoryLog{}
	for rows.Next() {
		var (
			entry     domain.InventoryLog
			createdBy sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.PartID, &entry.Quantity, &entry.LogType, &entry.Notes, &createdBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedBy = createdBy.String
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

type AuditReport struct {
	PartID     string `json:"part_id"`
	Quantity   int    `json:"quantity"`
	LedgerSum  int    `json:"ledger_sum"`
	Entries    int    `json:"entries"`
	Consistent bool   `json:"consistent"`
}

// Audit checks that the part quantity equals the sum of its log deltas.
// Parts start at zero and their opening stock is itself a NEW entry.
func (l *Ledger) Audit(ctx context.Context, partID string) (*AuditReport, error) {
	if _, err := uuid.Parse(partID); err != nil {
		return nil, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
	}

	report := &AuditReport{PartID: partID}
	err := l.db.QueryRowContext(ctx, `
		SELECT p.quantity, COALESCE(SUM(l.quantity), 0), COUNT(l.id)
		FROM parts p
		LEFT JOIN inventory_logs l ON l.part_id = p.id
		WHERE p.id = $1
		GROUP BY p.id
	`, partID).Scan(&report.Quantity, &report.LedgerSum, &report.Entries)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", partID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("audit part %s: %w", partID, err)
	}

	report.Consistent = report.Quantity == report.LedgerSum
	return report, nil
}
