package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/messaging"
)

// NotificationHandler turns marketplace events into emails. Malformed
// payloads are logged and skipped; delivery failures are returned so the
// message is not committed.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		httpClient:      client,
		logger:          logger,
	}
}

type email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case messaging.TopicOrderPlaced:
		var event domain.OrderPlacedEvent
		if !h.decode(topic, payload, &event) {
			return nil
		}
		return h.orderPlaced(ctx, event)
	case messaging.TopicOrderStatusChanged:
		var event domain.OrderStatusChangedEvent
		if !h.decode(topic, payload, &event) {
			return nil
		}
		return h.statusChanged(ctx, event)
	case messaging.TopicLowStock:
		var event domain.LowStockEvent
		if !h.decode(topic, payload, &event) {
			return nil
		}
		return h.lowStock(ctx, event)
	default:
		h.logger.Warn("ignoring message from unknown topic", "topic", topic)
		return nil
	}
}

func (h *NotificationHandler) decode(topic string, payload []byte, dst any) bool {
	if err := json.Unmarshal(payload, dst); err != nil {
		h.logger.Error("dropping malformed event", "error", err, "topic", topic)
		return false
	}
	return true
}

func (h *NotificationHandler) orderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error {
	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	if event.CustomerEmail == "" {
		h.logger.Warn("order has no customer email, skipping confirmation", "order_id", event.OrderID)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "%d x part %s @ %s\n", item.Quantity, item.PartID, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", event.Total.StringFixed(2))

	if err := h.send(ctx, email{
		To:      event.CustomerEmail,
		Subject: "Order Confirmation: " + event.OrderID,
		Body:    b.String(),
	}); err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) statusChanged(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	var msg email
	switch event.To {
	case domain.OrderStatusShipped:
		body := fmt.Sprintf("Your order %s has shipped.", event.OrderID)
		if event.TrackingNumber != "" {
			body += " Tracking number: " + event.TrackingNumber + "."
		}
		msg = email{Subject: "Order Shipped: " + event.OrderID, Body: body}
	case domain.OrderStatusDelivered:
		msg = email{
			Subject: "Order Delivered: " + event.OrderID,
			Body:    fmt.Sprintf("Your order %s has been delivered.", event.OrderID),
		}
	case domain.OrderStatusCancelled:
		msg = email{
			Subject: "Order Cancelled: " + event.OrderID,
			Body:    fmt.Sprintf("Your order %s has been cancelled. Any payment will be refunded.", event.OrderID),
		}
	default:
		h.logger.Debug("no notification for status", "order_id", event.OrderID, "status", event.To)
		return nil
	}

	if event.CustomerEmail == "" {
		h.logger.Warn("order has no customer email, skipping status notification", "order_id", event.OrderID)
		return nil
	}
	msg.To = event.CustomerEmail

	if err := h.send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification for order %s: %w", event.To, event.OrderID, err)
	}

	h.logger.Info("status notification sent", "order_id", event.OrderID, "from", event.From, "to", event.To)
	return nil
}

func (h *NotificationHandler) lowStock(ctx context.Context, event domain.LowStockEvent) error {
	if event.TraderEmail == "" {
		h.logger.Warn("part has no trader email, skipping reorder alert", "part_id", event.PartID)
		return nil
	}

	subject := "Low Stock: " + event.SKU
	if event.StockStatus == domain.StockStatusOut {
		subject = "Out of Stock: " + event.SKU
	}
	body := fmt.Sprintf("%s (%s) has %d units left, threshold %d. Suggested reorder: %d units.",
		event.Name, event.SKU, event.Quantity, event.LowStockThreshold, event.ReorderQuantity)

	if err := h.send(ctx, email{To: event.TraderEmail, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("send reorder alert for part %s: %w", event.PartID, err)
	}

	h.logger.Info("reorder alert sent", "part_id", event.PartID, "trader_id", event.TraderID, "quantity", event.Quantity)
	return nil
}

func (h *NotificationHandler) send(ctx context.Context, msg email) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
