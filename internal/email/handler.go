package email

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/partsmarket/internal/httpx"
)

var meter = otel.Meter("email")

// Handler is the notification sink. It records delivery in the log and a
// counter and leaves real delivery to an external provider.
type Handler struct {
	logger *slog.Logger
	sent   metric.Int64Counter
}

func NewHandler(logger *slog.Logger) *Handler {
	sent, err := meter.Int64Counter("emails.sent",
		metric.WithDescription("Emails accepted for delivery"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &Handler{
		logger: logger,
		sent:   sent,
	}
}

type sendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid email request")
		return
	}

	h.record(r.Context(), req.Subject)
	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)

	httpx.WriteJSON(w, h.logger, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) record(ctx context.Context, subject string) {
	if h.sent == nil {
		return
	}
	kind := "other"
	for _, prefix := range []string{"Order Confirmation", "Order Shipped", "Order Delivered", "Order Cancelled", "Low Stock", "Out of Stock"} {
		if strings.HasPrefix(subject, prefix) {
			kind = prefix
			break
		}
	}
	h.sent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
