package domain

import (
	"math"
	"time"
)

// MaxQuantity bounds stock quantities and deltas to the INTEGER columns
// they are stored in.
const MaxQuantity = math.MaxInt32

type LogType string

const (
	LogTypeNew        LogType = "NEW"
	LogTypeRestock    LogType = "RESTOCK"
	LogTypeAdjustment LogType = "ADJUSTMENT"
)

func (t LogType) Valid() bool {
	return t == LogTypeNew || t == LogTypeRestock || t == LogTypeAdjustment
}

// InventoryLog is an append-only record of one quantity change.
type InventoryLog struct {
	ID        string    `json:"id"`
	PartID    string    `json:"part_id"`
	Quantity  int       `json:"quantity"`
	LogType   LogType   `json:"log_type"`
	Notes     string    `json:"notes"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type StockReservation struct {
	ID         string    `json:"id"`
	PartID     string    `json:"part_id"`
	Quantity   int       `json:"quantity"`
	SessionKey string    `json:"session_key"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type StockLevel struct {
	PartID      string      `json:"part_id"`
	Quantity    int         `json:"quantity"`
	Reserved    int         `json:"reserved"`
	Available   int         `json:"available"`
	StockStatus StockStatus `json:"stock_status"`
}

// Available is quantity minus active holds, floored at zero. Holds can
// exceed quantity after a manual downward adjustment.
func Available(quantity, reserved int) int {
	if reserved >= quantity {
		return 0
	}
	return quantity - reserved
}

func NewStockLevel(partID string, quantity, threshold, reserved int) StockLevel {
	return StockLevel{
		PartID:      partID,
		Quantity:    quantity,
		Reserved:    reserved,
		Available:   Available(quantity, reserved),
		StockStatus: StockStatusFor(quantity, threshold),
	}
}
