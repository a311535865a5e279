package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/httpx"
	"github.com/joao-fontenele/partsmarket/internal/messaging"
)

type StockLedger interface {
	Adjust(ctx context.Context, p AdjustParams) (*AdjustResult, error)
	Restock(ctx context.Context, partID string, quantity int, actor string) (*AdjustResult, error)
	BatchRestock(ctx context.Context, partIDs []string, actor string) []RestockOutcome
	AvailableQuantity(ctx context.Context, partID string) (*domain.StockLevel, error)
	History(ctx context.Context, partID string, limit int) ([]domain.InventoryLog, error)
	Audit(ctx context.Context, partID string) (*AuditReport, error)
}

type ReservationStore interface {
	Reserve(ctx context.Context, p ReserveParams) (*domain.StockReservation, error)
	Release(ctx context.Context, id string) error
	ReleaseSession(ctx context.Context, sessionKey string) (int64, error)
	ListSession(ctx context.Context, sessionKey string) ([]domain.StockReservation, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Handler struct {
	ledger       StockLedger
	reservations ReservationStore
	publisher    Publisher
	logger       *slog.Logger
}

// NewHandler accepts a nil publisher when Kafka is not configured.
func NewHandler(ledger StockLedger, reservations ReservationStore, publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:       ledger,
		reservations: reservations,
		publisher:    publisher,
		logger:       logger,
	}
}

func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("GET /stock/{partId}", wrap(h.HandleGetStock))
	mux.HandleFunc("POST /stock/{partId}/adjust", wrap(h.HandleAdjust))
	mux.HandleFunc("POST /stock/{partId}/restock", wrap(h.HandleRestock))
	mux.HandleFunc("POST /stock/restock", wrap(h.HandleBatchRestock))
	mux.HandleFunc("GET /stock/{partId}/logs", wrap(h.HandleHistory))
	mux.HandleFunc("GET /stock/{partId}/audit", wrap(h.HandleAudit))
	mux.HandleFunc("POST /reservations", wrap(h.HandleReserve))
	mux.HandleFunc("DELETE /reservations/{id}", wrap(h.HandleRelease))
	mux.HandleFunc("GET /sessions/{sessionKey}/reservations", wrap(h.HandleListSession))
	mux.HandleFunc("DELETE /sessions/{sessionKey}/reservations", wrap(h.HandleReleaseSession))
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	partID := r.PathValue("partId")

	level, err := h.ledger.AvailableQuantity(r.Context(), partID)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to get stock", "part_id", partID)
		return
	}

	h.logger.Info("stock retrieved", "part_id", partID, "available", level.Available)
	httpx.WriteJSON(w, h.logger, http.StatusOK, level)
}

type adjustRequest struct {
	Quantity int            `json:"quantity" validate:"ne=0,gte=-2147483647,lte=2147483647"`
	LogType  domain.LogType `json:"log_type" validate:"omitempty,oneof=NEW RESTOCK ADJUSTMENT"`
	Notes    string         `json:"notes" validate:"max=1000"`
}

func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	partID := r.PathValue("partId")

	var req adjustRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid adjust request", "part_id", partID)
		return
	}
	if req.LogType == "" {
		req.LogType = domain.LogTypeAdjustment
	}

	result, err := h.ledger.Adjust(r.Context(), AdjustParams{
		PartID:  partID,
		Delta:   req.Quantity,
		LogType: req.LogType,
		Actor:   httpx.UserID(r),
		Notes:   req.Notes,
	})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to adjust stock", "part_id", partID, "delta", req.Quantity)
		return
	}

	h.publishLowStock(r.Context(), result)
	h.logger.Info("stock adjusted", "part_id", partID, "delta", req.Quantity, "new_quantity", result.NewQuantity)
	httpx.WriteJSON(w, h.logger, http.StatusOK, result)
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"gte=1,lte=2147483647"`
}

func (h *Handler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	partID := r.PathValue("partId")

	var req restockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid restock request", "part_id", partID)
		return
	}

	result, err := h.ledger.Restock(r.Context(), partID, req.Quantity, httpx.UserID(r))
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to restock", "part_id", partID)
		return
	}

	h.logger.Info("part restocked", "part_id", partID, "quantity", req.Quantity, "new_quantity", result.NewQuantity)
	httpx.WriteJSON(w, h.logger, http.StatusOK, result)
}

type batchRestockRequest struct {
	PartIDs []string `json:"part_ids" validate:"required,min=1,max=200"`
}

func (h *Handler) HandleBatchRestock(w http.ResponseWriter, r *http.Request) {
	var req batchRestockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid batch restock request")
		return
	}

	outcomes := h.ledger.BatchRestock(r.Context(), req.PartIDs, httpx.UserID(r))

	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}
	h.logger.Info("batch restock finished", "parts", len(outcomes), "failed", failed)
	httpx.WriteJSON(w, h.logger, http.StatusOK, outcomes)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	partID := r.PathValue("partId")

	limit, err := httpx.IntQuery(r, "limit", 100)
	if err != nil {
		httpx.Error(w, h.logger, err, "invalid history request", "part_id", partID)
		return
	}

	logs, err := h.ledger.History(r.Context(), partID, limit)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list inventory logs", "part_id", partID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, logs)
}

func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	partID := r.PathValue("partId")

	report, err := h.ledger.Audit(r.Context(), partID)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to audit part", "part_id", partID)
		return
	}

	if !report.Consistent {
		h.logger.Warn("inventory ledger mismatch", "part_id", partID, "quantity", report.Quantity, "ledger_sum", report.LedgerSum)
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, report)
}

type reserveRequest struct {
	PartID     string `json:"part_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"gte=1,lte=2147483647"`
	TTLSeconds int    `json:"ttl_seconds" validate:"gte=0,lte=86400"`
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid reserve request")
		return
	}

	reservation, err := h.reservations.Reserve(r.Context(), ReserveParams{
		PartID:     req.PartID,
		SessionKey: httpx.SessionKey(r),
		Quantity:   req.Quantity,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to reserve stock", "part_id", req.PartID, "quantity", req.Quantity)
		return
	}

	h.logger.Info("stock reserved", "reservation_id", reservation.ID, "part_id", req.PartID, "quantity", req.Quantity)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, reservation)
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.reservations.Release(r.Context(), id); err != nil {
		httpx.Error(w, h.logger, err, "failed to release reservation", "reservation_id", id)
		return
	}

	h.logger.Info("reservation released", "reservation_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListSession(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.PathValue("sessionKey")

	reservations, err := h.reservations.ListSession(r.Context(), sessionKey)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list session reservations")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, reservations)
}

func (h *Handler) HandleReleaseSession(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.PathValue("sessionKey")

	released, err := h.reservations.ReleaseSession(r.Context(), sessionKey)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to release session reservations")
		return
	}

	h.logger.Info("session reservations released", "count", released)
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]int64{"released": released})
}

func (h *Handler) publishLowStock(ctx context.Context, result *AdjustResult) {
	if h.publisher == nil || result.LowStock == nil {
		return
	}
	event := result.LowStock
	if err := h.publisher.Publish(ctx, messaging.TopicLowStock, event.PartID, event); err != nil {
		h.logger.Error("failed to publish low stock event", "error", err, "part_id", event.PartID)
	}
}
