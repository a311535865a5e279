package catalog

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PartFilter struct {
	BrandID          string
	CarModelID       string
	CategoryID       string
	CategoryParentID string
	TraderID         string
	Featured         *bool
	InStock          bool
	// IncludeHidden lists inactive and unapproved parts too, for the
	// admin listing.
	IncludeHidden bool
	Limit         int
	Offset        int
}

func (f PartFilter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const partColumns = `p.id, p.trader_id, p.category_id, p.category_parent_id, p.name, p.description,
	p.price, p.sku, p.oem_number, p.quantity, p.low_stock_threshold, p.reorder_quantity,
	p.is_active, p.approved, p.is_featured, p.warranty_months, p.created_at, p.updated_at`

// reservedColumn sums unexpired holds; $1 is always the current time.
const reservedColumn = `COALESCE((SELECT SUM(r.quantity) FROM stock_reservations r
	WHERE r.part_id = p.id AND r.expires_at > $1), 0)`

// buildPartQuery renders the listing query for f with positional args.
func buildPartQuery(f PartFilter, now time.Time) (string, []any) {
	args := []any{now.UTC()}
	var where []string

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeHidden {
		where = append(where, "p.is_active", "p.approved")
	}
	if f.CategoryID != "" {
		where = append(where, "p.category_id = "+arg(f.CategoryID))
	}
	if f.CategoryParentID != "" {
		where = append(where, "p.category_parent_id = "+arg(f.CategoryParentID))
	}
	if f.TraderID != "" {
		where = append(where, "p.trader_id = "+arg(f.TraderID))
	}
	if f.Featured != nil {
		where = append(where, "p.is_featured = "+arg(*f.Featured))
	}
	if f.InStock {
		where = append(where, "p.quantity > 0")
	}
	if f.CarModelID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM compatibilities c WHERE c.part_id = p.id AND c.car_model_id = "+arg(f.CarModelID)+")")
	}
	if f.BrandID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM compatibilities c JOIN car_models m ON m.id = c.car_model_id WHERE c.part_id = p.id AND m.brand_id = "+arg(f.BrandID)+")")
	}

	var q strings.Builder
	q.WriteString("SELECT " + partColumns + ", " + reservedColumn + " FROM parts p")
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	limit, offset := f.page()
	q.WriteString(" ORDER BY p.is_featured DESC, p.created_at DESC, p.id")
	q.WriteString(" LIMIT " + arg(limit) + " OFFSET " + arg(offset))

	return q.String(), args
}
