package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// DefaultCommissionRate is applied when a supplier has no trader profile.
var DefaultCommissionRate = decimal.NewFromInt(10)

var hundred = decimal.NewFromInt(100)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateOrderTransition returns an *InvalidTransitionError when the move is not allowed.
func ValidateOrderTransition(orderID string, from, to OrderStatus) error {
	if !from.CanTransition(to) {
		return &InvalidTransitionError{Resource: "order", OrderID: orderID, From: string(from), To: string(to)}
	}
	return nil
}

type OrderItem struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	PartID         string          `json:"part_id"`
	SupplierID     string          `json:"supplier_id"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Commission is the unrounded marketplace share of the line.
func (i OrderItem) Commission() decimal.Decimal {
	return i.LineTotal().Mul(i.CommissionRate).Div(hundred)
}

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Status         OrderStatus     `json:"status"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	Commission     decimal.Decimal `json:"commission"`
	TrackingNumber string          `json:"tracking_number"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Totals computes total and commission from items. Commission is summed
// at full precision and rounded to cents once.
func Totals(items []OrderItem) (total, commission decimal.Decimal) {
	total = decimal.Zero
	commission = decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
		commission = commission.Add(item.Commission())
	}
	return total.Round(2), commission.Round(2)
}

// Recompute rewrites Total and Commission from the order items.
func (o *Order) Recompute() {
	o.Total, o.Commission = Totals(o.Items)
}
