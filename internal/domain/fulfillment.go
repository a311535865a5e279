package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	return s == PaymentStatusPending && (next == PaymentStatusCompleted || next == PaymentStatusFailed)
}

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ShippingStatus string

const (
	ShippingStatusPending    ShippingStatus = "PENDING"
	ShippingStatusInProgress ShippingStatus = "IN_PROGRESS"
	ShippingStatusDelivered  ShippingStatus = "DELIVERED"
	ShippingStatusReturned   ShippingStatus = "RETURNED"
)

var shippingTransitions = map[ShippingStatus][]ShippingStatus{
	ShippingStatusPending:    {ShippingStatusInProgress},
	ShippingStatusInProgress: {ShippingStatusDelivered, ShippingStatusReturned},
	ShippingStatusDelivered:  {ShippingStatusReturned},
}

func (s ShippingStatus) CanTransition(next ShippingStatus) bool {
	for _, allowed := range shippingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Shipping struct {
	ID                string         `json:"id"`
	OrderID           string         `json:"order_id"`
	Carrier           string         `json:"carrier"`
	Status            ShippingStatus `json:"status"`
	TrackingNumber    string         `json:"tracking_number"`
	EstimatedDelivery *time.Time     `json:"estimated_delivery,omitempty"`
	ShippingAddress   string         `json:"shipping_address"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
