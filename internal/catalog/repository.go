package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/inventory"
	"github.com/joao-fontenele/partsmarket/internal/postgres"
)

type CatalogRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db, now: time.Now}
}

func (r *CatalogRepository) CreateBrand(ctx context.Context, b domain.Brand) (*domain.Brand, error) {
	b.ID = uuid.New().String()
	b.Name = strings.TrimSpace(b.Name)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO brands (id, name, founded, headquarters)
		VALUES ($1, $2, $3, $4)
	`, b.ID, b.Name, b.Founded, b.Headquarters)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domain.Invalid("name", "brand already exists")
		}
		if postgres.IsCheckViolation(err) {
			return nil, domain.Invalid("founded", "must be a positive year")
		}
		return nil, fmt.Errorf("insert brand: %w", err)
	}
	return &b, nil
}

func (r *CatalogRepository) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, founded, headquarters
		FROM brands
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	brands := []domain.Brand{}
	for rows.Next() {
		var (
			b       domain.Brand
			founded sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.Name, &founded, &b.Headquarters); err != nil {
			return nil, err
		}
		b.Founded = nullInt(founded)
		brands = append(brands, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return brands, nil
}

func (r *CatalogRepository) CreateCarModel(ctx context.Context, m domain.CarModel) (*domain.CarModel, error) {
	if _, err := uuid.Parse(m.BrandID); err != nil {
		return nil, domain.Invalid("brand_id", "must be a UUID")
	}
	m.ID = uuid.New().String()

	err := r.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO car_models (id, brand_id, name, production_start, production_end)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING brand_id
		)
		SELECT b.name FROM inserted JOIN brands b ON b.id = inserted.brand_id
	`, m.ID, m.BrandID, m.Name, m.ProductionStart, m.ProductionEnd).Scan(&m.BrandName)
	if err != nil {
		switch {
		case postgres.IsForeignKeyViolation(err):
			return nil, fmt.Errorf("brand %s: %w", m.BrandID, domain.ErrNotFound)
		case postgres.IsCheckViolation(err):
			return nil, domain.Invalid("production_end", "must not precede production_start")
		}
		return nil, fmt.Errorf("insert car model: %w", err)
	}
	return &m, nil
}

func (r *CatalogRepository) ListCarModels(ctx context.Context, brandID string) ([]domain.CarModel, error) {
	if _, err := uuid.Parse(brandID); err != nil {
		return nil, fmt.Errorf("brand %s: %w", brandID, domain.ErrNotFound)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.brand_id, b.name, m.name, m.production_start, m.production_end
		FROM car_models m
		JOIN brands b ON b.id = m.brand_id
		WHERE m.brand_id = $1
		ORDER BY m.name, m.production_start
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list car models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	models := []domain.CarModel{}
	for rows.Next() {
		var (
			m   domain.CarModel
			end sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.BrandID, &m.BrandName, &m.Name, &m.ProductionStart, &end); err != nil {
			return nil, err
		}
		m.ProductionEnd = nullInt(end)
		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return models, nil
}

func (r *CatalogRepository) CreateCategoryParent(ctx context.Context, c domain.CategoryParent) (*domain.CategoryParent, error) {
	c.ID = uuid.New().String()
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Slug == "" {
		return nil, domain.Invalid("name", "must contain letters or digits")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_parents (id, name, description, slug)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.Description, c.Slug)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domain.Invalid("slug", "already exists")
		}
		return nil, fmt.Errorf("insert category parent: %w", err)
	}
	return &c, nil
}

// CreateCategory derives the slug from the name.
func (r *CatalogRepository) CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	if c.ParentID != "" {
		if _, err := uuid.Parse(c.ParentID); err != nil {
			return nil, domain.Invalid("parent_id", "must be a UUID")
		}
	}
	c.ID = uuid.New().String()
	c.Slug = Slugify(c.Name)
	if c.Slug == "" {
		return nil, domain.Invalid("name", "must contain letters or digits")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, parent_id, name, description, slug)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, postgres.NullString(c.ParentID), c.Name, c.Description, c.Slug)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return nil, domain.Invalid("name", "a category with this slug already exists")
		case postgres.IsForeignKeyViolation(err):
			return nil, fmt.Errorf("category parent %s: %w", c.ParentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &c, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parent_id, name, description, slug
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var (
			c        domain.Category
			parentID sql.NullString
		)
		if err := rows.Scan(&c.ID, &parentID, &c.Name, &c.Description, &c.Slug); err != nil {
			return nil, err
		}
		c.ParentID = parentID.String
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

type CreatePartParams struct {
	TraderID          string          `json:"trader_id" validate:"required,uuid"`
	CategoryID        string          `json:"category_id" validate:"required,uuid"`
	CategoryParentID  string          `json:"category_parent_id" validate:"required,uuid"`
	Name              string          `json:"name" validate:"required,max=255"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	SKU               string          `json:"sku" validate:"required,max=50"`
	OEMNumber         string          `json:"oem_number" validate:"max=255"`
	Quantity          int             `json:"quantity" validate:"gte=0,lte=2147483647"`
	LowStockThreshold *int            `json:"low_stock_threshold" validate:"omitempty,gte=0,lte=2147483647"`
	ReorderQuantity   *int            `json:"reorder_quantity" validate:"omitempty,gte=0,lte=2147483647"`
	WarrantyMonths    *int            `json:"warranty_months" validate:"omitempty,gte=0"`
	IsFeatured        bool            `json:"is_featured"`
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

// CreatePart inserts the part at zero stock and books the opening quantity
// as a NEW ledger entry in the same transaction. New parts await approval.
func (r *CatalogRepository) CreatePart(ctx context.Context, p CreatePartParams) (*domain.Part, error) {
	if p.Price.IsNegative() {
		return nil, domain.Invalid("price", "must not be negative")
	}
	if p.Quantity < 0 {
		return nil, domain.Invalid("quantity", "must not be negative")
	}

	part := &domain.Part{
		ID:                uuid.New().String(),
		TraderID:          p.TraderID,
		CategoryID:        p.CategoryID,
		CategoryParentID:  p.CategoryParentID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price.Round(2),
		SKU:               strings.TrimSpace(p.SKU),
		OEMNumber:         p.OEMNumber,
		LowStockThreshold: intOr(p.LowStockThreshold, 5),
		ReorderQuantity:   intOr(p.ReorderQuantity, 10),
		WarrantyMonths:    intOr(p.WarrantyMonths, 12),
		IsActive:          true,
		IsFeatured:        p.IsFeatured,
	}

	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO parts (id, trader_id, category_id, category_parent_id, name, description, price,
			                   sku, oem_number, quantity, low_stock_threshold, reorder_quantity,
			                   is_active, approved, is_featured, warranty_months)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, TRUE, FALSE, $12, $13)
			RETURNING created_at, updated_at
		`, part.ID, part.TraderID, part.CategoryID, part.CategoryParentID, part.Name, part.Description, part.Price,
			part.SKU, part.OEMNumber, part.LowStockThreshold, part.ReorderQuantity, part.IsFeatured, part.WarrantyMonths,
		).Scan(&part.CreatedAt, &part.UpdatedAt)
		if err != nil {
			switch {
			case postgres.IsUniqueViolation(err):
				return domain.Invalid("sku", "already exists")
			case postgres.IsForeignKeyViolation(err):
				return domain.Invalid("", "trader, category or category parent does not exist")
			}
			return fmt.Errorf("insert part: %w", err)
		}

		if p.Quantity == 0 {
			return nil
		}
		result, err := inventory.AdjustTx(ctx, tx, inventory.AdjustParams{
			PartID:  part.ID,
			Delta:   p.Quantity,
			LogType: domain.LogTypeNew,
			Actor:   p.TraderID,
			Notes:   "Initial stock",
		})
		if err != nil {
			return err
		}
		part.Quantity = result.NewQuantity
		return nil
	})
	if err != nil {
		return nil, err
	}

	return part, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*domain.PartListing, error) {
	var (
		l        domain.PartListing
		reserved int
	)
	err := s.Scan(&l.ID, &l.TraderID, &l.CategoryID, &l.CategoryParentID, &l.Name, &l.Description,
		&l.Price, &l.SKU, &l.OEMNumber, &l.Quantity, &l.LowStockThreshold, &l.ReorderQuantity,
		&l.IsActive, &l.Approved, &l.IsFeatured, &l.WarrantyMonths, &l.CreatedAt, &l.UpdatedAt, &reserved)
	if err != nil {
		return nil, err
	}
	l.StockStatus = l.Part.StockStatus()
	l.AvailableQuantity = domain.Available(l.Quantity, reserved)
	return &l, nil
}

func (r *CatalogRepository) GetPart(ctx context.Context, id string) (*domain.PartListing, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("part %s: %w", id, domain.ErrNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+partColumns+`, `+reservedColumn+` FROM parts p WHERE p.id = $2`, r.now().UTC(), id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get part %s: %w", id, err)
	}
	return listing, nil
}

func (f PartFilter) validate() error {
	for field, value := range map[string]string{
		"brand":           f.BrandID,
		"car_model":       f.CarModelID,
		"category":        f.CategoryID,
		"category_parent": f.CategoryParentID,
		"trader":          f.TraderID,
	} {
		if value == "" {
			continue
		}
		if _, err := uuid.Parse(value); err != nil {
			return domain.Invalid(field, "must be a UUID")
		}
	}
	return nil
}

func (r *CatalogRepository) ListParts(ctx context.Context, f PartFilter) ([]domain.PartListing, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	query, args := buildPartQuery(f, r.now())
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	parts := []domain.PartListing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, *listing)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return parts, nil
}

func (r *CatalogRepository) AddCompatibility(ctx context.Context, c domain.Compatibility) error {
	if _, err := uuid.Parse(c.CarModelID); err != nil {
		return domain.Invalid("car_model_id", "must be a UUID")
	}
	if _, err := uuid.Parse(c.PartID); err != nil {
		return fmt.Errorf("part %s: %w", c.PartID, domain.ErrNotFound)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO compatibilities (part_id, car_model_id, notes)
		VALUES ($1, $2, $3)
		ON CONFLICT (part_id, car_model_id) DO UPDATE SET notes = EXCLUDED.notes
	`, c.PartID, c.CarModelID, c.Notes)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("part or car model: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("add compatibility: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListCompatibleModels(ctx context.Context, partID string) ([]domain.CarModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.brand_id, b.name, m.name, m.production_start, m.production_end
		FROM compatibilities c
		JOIN car_models m ON m.id = c.car_model_id
		JOIN brands b ON b.id = m.brand_id
		WHERE c.part_id = $1
		ORDER BY b.name, m.name
	`, partID)
	if err != nil {
		return nil, fmt.Errorf("list compatible models: %w", err)
	}
	defer func() { _ = rows.Close() }()

	models := []domain.CarModel{}
	for rows.Next() {
		var (
			m   domain.CarModel
			end sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.BrandID, &m.BrandName, &m.Name, &m.ProductionStart, &end); err != nil {
			return nil, err
		}
		m.ProductionEnd = nullInt(end)
		models = append(models, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return models, nil
}

// Flag updates never touch quantity, so they bypass the ledger.

func (r *CatalogRepository) SetApproved(ctx context.Context, partIDs []string, approved bool) (int64, error) {
	return r.updateFlags(ctx, `UPDATE parts SET approved = $2, updated_at = NOW() WHERE id = ANY($1)`, partIDs, approved)
}

func (r *CatalogRepository) SetFeatured(ctx context.Context, partIDs []string, featured bool) (int64, error) {
	return r.updateFlags(ctx, `UPDATE parts SET is_featured = $2, updated_at = NOW() WHERE id = ANY($1)`, partIDs, featured)
}

// ToggleActive flips is_active on each part independently.
func (r *CatalogRepository) ToggleActive(ctx context.Context, partIDs []string) (int64, error) {
	return r.updateFlags(ctx, `UPDATE parts SET is_active = NOT is_active, updated_at = NOW() WHERE id = ANY($1)`, partIDs)
}

func (r *CatalogRepository) updateFlags(ctx context.Context, query string, partIDs []string, extra ...any) (int64, error) {
	for _, id := range partIDs {
		if _, err := uuid.Parse(id); err != nil {
			return 0, domain.Invalid("part_ids", "must contain only UUIDs")
		}
	}

	args := append([]any{pq.Array(partIDs)}, extra...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update part flags: %w", err)
	}
	return result.RowsAffected()
}

type LowStockPart struct {
	ID                string             `json:"id"`
	SKU               string             `json:"sku"`
	Name              string             `json:"name"`
	TraderID          string             `json:"trader_id"`
	TraderEmail       string             `json:"trader_email"`
	Quantity          int                `json:"quantity"`
	LowStockThreshold int                `json:"low_stock_threshold"`
	ReorderQuantity   int                `json:"reorder_quantity"`
	StockStatus       domain.StockStatus `json:"stock_status"`
}

// LowStock lists active parts at or below their threshold, emptiest first.
func (r *CatalogRepository) LowStock(ctx context.Context) ([]LowStockPart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.sku, p.name, p.trader_id, u.email, p.quantity, p.low_stock_threshold, p.reorder_quantity
		FROM parts p
		JOIN users u ON u.id = p.trader_id
		WHERE p.is_active AND p.quantity <= p.low_stock_threshold
		ORDER BY p.quantity, p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list low stock parts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	parts := []LowStockPart{}
	for rows.Next() {
		var p LowStockPart
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.TraderID, &p.TraderEmail, &p.Quantity, &p.LowStockThreshold, &p.ReorderQuantity); err != nil {
			return nil, err
		}
		p.StockStatus = domain.StockStatusFor(p.Quantity, p.LowStockThreshold)
		parts = append(parts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return parts, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
