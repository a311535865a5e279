package orders

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/httpx"
	"github.com/joao-fontenele/partsmarket/internal/messaging"
)

type Engine interface {
	PlaceOrder(ctx context.Context, p PlaceOrderParams) (*Placement, error)
	UpdateStatus(ctx context.Context, id string, to domain.OrderStatus, actor string) (*StatusChange, error)
	BatchUpdateStatus(ctx context.Context, ids []string, to domain.OrderStatus, actor string) []StatusOutcome
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	ItemsBySupplier(ctx context.Context, supplierID string) ([]SupplierItem, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Handler struct {
	engine    Engine
	publisher Publisher
	logger    *slog.Logger
}

// NewHandler accepts a nil publisher when Kafka is not configured.
func NewHandler(engine Engine, publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("POST /orders", wrap(h.HandleCreate))
	mux.HandleFunc("GET /orders", wrap(h.HandleList))
	mux.HandleFunc("GET /orders/{id}", wrap(h.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", wrap(h.HandleUpdateStatus))
	mux.HandleFunc("POST /orders/status", wrap(h.HandleBatchStatus))
	mux.HandleFunc("GET /suppliers/{id}/items", wrap(h.HandleSupplierItems))
}

type createOrderRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
	Notes string        `json:"notes" validate:"max=2000"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid order request")
		return
	}

	userID := httpx.UserID(r)
	if userID == "" {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, "unauthenticated", "missing "+httpx.UserIDHeader+" header")
		return
	}

	placement, err := h.engine.PlaceOrder(r.Context(), PlaceOrderParams{
		UserID:     userID,
		SessionKey: httpx.SessionKey(r),
		Items:      req.Items,
		Notes:      req.Notes,
	})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to place order", "user_id", userID)
		return
	}

	order := placement.Order
	h.publish(r.Context(), messaging.TopicOrderPlaced, order.ID, domain.OrderPlacedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		CustomerEmail: placement.CustomerEmail,
		Items:         order.Items,
		Total:         order.Total,
		Timestamp:     order.CreatedAt,
	})
	for _, alert := range placement.StockAlerts {
		h.publish(r.Context(), messaging.TopicLowStock, alert.PartID, alert)
	}

	h.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID,
		"items", len(order.Items), "total", order.Total.StringFixed(2), "commission", order.Commission.StringFixed(2))
	httpx.WriteJSON(w, h.logger, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.engine.GetByID(r.Context(), id)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to get order", "order_id", id)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	httpx.WriteJSON(w, h.logger, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid status request", "order_id", id)
		return
	}

	change, err := h.engine.UpdateStatus(r.Context(), id, req.Status, httpx.UserID(r))
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to update order status", "order_id", id, "status", req.Status)
		return
	}

	h.publishStatusChange(r.Context(), change)
	h.logger.Info("order status updated", "order_id", id, "from", change.From, "to", change.Order.Status)
	httpx.WriteJSON(w, h.logger, http.StatusOK, change.Order)
}

type batchStatusRequest struct {
	OrderIDs []string           `json:"order_ids" validate:"required,min=1,max=200,dive,uuid"`
	Status   domain.OrderStatus `json:"status" validate:"required"`
}

func (h *Handler) HandleBatchStatus(w http.ResponseWriter, r *http.Request) {
	var req batchStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid batch status request")
		return
	}

	outcomes := h.engine.BatchUpdateStatus(r.Context(), req.OrderIDs, req.Status, httpx.UserID(r))

	failed := 0
	for _, o := range outcomes {
		if change := o.Change(); change != nil {
			h.publishStatusChange(r.Context(), change)
			continue
		}
		failed++
	}

	h.logger.Info("batch status update finished", "status", req.Status, "orders", len(outcomes), "failed", failed)
	httpx.WriteJSON(w, h.logger, http.StatusOK, outcomes)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
	}
	if f.UserID == "" {
		f.UserID = httpx.UserID(r)
	}

	var err error
	if f.Limit, err = httpx.IntQuery(r, "limit", 20); err != nil {
		httpx.Error(w, h.logger, err, "invalid order filter")
		return
	}
	if f.Offset, err = httpx.IntQuery(r, "offset", 0); err != nil {
		httpx.Error(w, h.logger, err, "invalid order filter")
		return
	}

	orders, err := h.engine.List(r.Context(), f)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleSupplierItems(w http.ResponseWriter, r *http.Request) {
	supplierID := r.PathValue("id")

	items, err := h.engine.ItemsBySupplier(r.Context(), supplierID)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list supplier items", "supplier_id", supplierID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, items)
}

func (h *Handler) publishStatusChange(ctx context.Context, change *StatusChange) {
	order := change.Order
	h.publish(ctx, messaging.TopicOrderStatusChanged, order.ID, domain.OrderStatusChangedEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		CustomerEmail:  change.CustomerEmail,
		From:           change.From,
		To:             order.Status,
		TrackingNumber: order.TrackingNumber,
		Timestamp:      time.Now().UTC(),
	})
}

// publish is best effort; the order is already committed.
func (h *Handler) publish(ctx context.Context, topic, key string, event any) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, topic, key, event); err != nil {
		h.logger.Error("failed to publish event", "error", err, "topic", topic, "key", key)
	}
}
