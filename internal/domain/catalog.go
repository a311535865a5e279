package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockStatusOut StockStatus = "out_of_stock"
	StockStatusLow StockStatus = "low_stock"
	StockStatusIn  StockStatus = "in_stock"
)

func StockStatusFor(quantity, lowStockThreshold int) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOut
	case quantity <= lowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

type Brand struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Founded      *int   `json:"founded,omitempty"`
	Headquarters string `json:"headquarters"`
}

type CarModel struct {
	ID              string `json:"id"`
	BrandID         string `json:"brand_id"`
	BrandName       string `json:"brand_name,omitempty"`
	Name            string `json:"name"`
	ProductionStart int    `json:"production_start"`
	ProductionEnd   *int   `json:"production_end,omitempty"`
}

func (m CarModel) Label() string {
	end := "present"
	if m.ProductionEnd != nil {
		end = fmt.Sprintf("%d", *m.ProductionEnd)
	}
	return fmt.Sprintf("%s %s (%d-%s)", m.BrandName, m.Name, m.ProductionStart, end)
}

type CategoryParent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
}

type Category struct {
	ID          string `json:"id"`
	ParentID    string `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
}

type Part struct {
	ID                string          `json:"id"`
	TraderID          string          `json:"trader_id"`
	CategoryID        string          `json:"category_id"`
	CategoryParentID  string          `json:"category_parent_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	SKU               string          `json:"sku"`
	OEMNumber         string          `json:"oem_number"`
	Quantity          int             `json:"quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	ReorderQuantity   int             `json:"reorder_quantity"`
	IsActive          bool            `json:"is_active"`
	Approved          bool            `json:"approved"`
	IsFeatured        bool            `json:"is_featured"`
	WarrantyMonths    int             `json:"warranty_months"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p Part) StockStatus() StockStatus {
	return StockStatusFor(p.Quantity, p.LowStockThreshold)
}

// Sellable reports whether the part may appear on an order.
func (p Part) Sellable() bool {
	return p.IsActive && p.Approved
}

// PartListing is a part as seen by catalog browsing.
type PartListing struct {
	Part
	StockStatus       StockStatus `json:"stock_status"`
	AvailableQuantity int         `json:"available_quantity"`
}

type Compatibility struct {
	PartID     string `json:"part_id"`
	CarModelID string `json:"car_model_id"`
	Notes      string `json:"notes"`
}
