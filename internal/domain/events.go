package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPlacedEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Timestamp     time.Time       `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	CustomerEmail  string      `json:"customer_email"`
	From           OrderStatus `json:"from"`
	To             OrderStatus `json:"to"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// LowStockEvent is emitted when a stock change leaves a part low or out of stock.
type LowStockEvent struct {
	PartID            string      `json:"part_id"`
	SKU               string      `json:"sku"`
	Name              string      `json:"name"`
	TraderID          string      `json:"trader_id"`
	TraderEmail       string      `json:"trader_email"`
	Quantity          int         `json:"quantity"`
	LowStockThreshold int         `json:"low_stock_threshold"`
	ReorderQuantity   int         `json:"reorder_quantity"`
	StockStatus       StockStatus `json:"stock_status"`
	Timestamp         time.Time   `json:"timestamp"`
}
