package fulfillment

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/httpx"
)

type Service interface {
	RecordPayment(ctx context.Context, p RecordPaymentParams) (*domain.Payment, error)
	GetPayment(ctx context.Context, orderID string) (*domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, to domain.PaymentStatus) (*domain.Payment, error)
	CreateShipment(ctx context.Context, p CreateShipmentParams) (*domain.Shipping, error)
	GetShipment(ctx context.Context, orderID string) (*domain.Shipping, error)
	UpdateShipmentStatus(ctx context.Context, orderID string, to domain.ShippingStatus) (*domain.Shipping, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) Routes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}
	mux.HandleFunc("POST /orders/{id}/payment", wrap(h.HandleRecordPayment))
	mux.HandleFunc("GET /orders/{id}/payment", wrap(h.HandleGetPayment))
	mux.HandleFunc("PATCH /orders/{id}/payment/status", wrap(h.HandleUpdatePaymentStatus))
	mux.HandleFunc("POST /orders/{id}/shipment", wrap(h.HandleCreateShipment))
	mux.HandleFunc("GET /orders/{id}/shipment", wrap(h.HandleGetShipment))
	mux.HandleFunc("PATCH /orders/{id}/shipment/status", wrap(h.HandleUpdateShipmentStatus))
}

type paymentRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod string           `json:"payment_method" validate:"required,max=50"`
	TransactionID string           `json:"transaction_id" validate:"max=255"`
}

func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req paymentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid payment request", "order_id", orderID)
		return
	}
	if req.Amount == nil {
		httpx.Error(w, h.logger, domain.Invalid("amount", "is required"), "invalid payment request", "order_id", orderID)
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), RecordPaymentParams{
		OrderID:       orderID,
		Amount:        *req.Amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to record payment", "order_id", orderID)
		return
	}

	h.logger.Info("payment recorded", "order_id", orderID, "payment_id", payment.ID, "amount", payment.Amount.StringFixed(2))
	httpx.WriteJSON(w, h.logger, http.StatusCreated, payment)
}

func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	payment, err := h.service.GetPayment(r.Context(), orderID)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to get payment", "order_id", orderID)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, payment)
}

type paymentStatusRequest struct {
	Status domain.PaymentStatus `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED"`
}

func (h *Handler) HandleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req paymentStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid payment status request", "order_id", orderID)
		return
	}

	payment, err := h.service.UpdatePaymentStatus(r.Context(), orderID, req.Status)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to update payment status", "order_id", orderID, "status", req.Status)
		return
	}

	h.logger.Info("payment status updated", "order_id", orderID, "status", payment.Status)
	httpx.WriteJSON(w, h.logger, http.StatusOK, payment)
}

type shipmentRequest struct {
	Carrier           string     `json:"carrier" validate:"required,max=100"`
	ShippingAddress   *string    `json:"shipping_address"`
	TrackingNumber    string     `json:"tracking_number" validate:"max=255"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

func (h *Handler) HandleCreateShipment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req shipmentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid shipment request", "order_id", orderID)
		return
	}

	shipment, err := h.service.CreateShipment(r.Context(), CreateShipmentParams{
		OrderID:           orderID,
		Carrier:           req.Carrier,
		Address:           req.ShippingAddress,
		TrackingNumber:    req.TrackingNumber,
		EstimatedDelivery: req.EstimatedDelivery,
	})
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create shipment", "order_id", orderID)
		return
	}

	h.logger.Info("shipment created", "order_id", orderID, "shipment_id", shipment.ID, "tracking_number", shipment.TrackingNumber)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, shipment)
}

func (h *Handler) HandleGetShipment(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	shipment, err := h.service.GetShipment(r.Context(), orderID)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to get shipment", "order_id", orderID)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, shipment)
}

type shipmentStatusRequest struct {
	Status domain.ShippingStatus `json:"status" validate:"required,oneof=PENDING IN_PROGRESS DELIVERED RETURNED"`
}

func (h *Handler) HandleUpdateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req shipmentStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid shipment status request", "order_id", orderID)
		return
	}

	shipment, err := h.service.UpdateShipmentStatus(r.Context(), orderID, req.Status)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to update shipment status", "order_id", orderID, "status", req.Status)
		return
	}

	h.logger.Info("shipment status updated", "order_id", orderID, "status", shipment.Status)
	httpx.WriteJSON(w, h.logger, http.StatusOK, shipment)
}
