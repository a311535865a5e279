//go:build integration

package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
)

// Fixture holds rows shared by most scenarios: a customer with an address,
// an approved trader and one category.
type Fixture struct {
	CustomerID       string
	CustomerEmail    string
	TraderID         string
	TraderEmail      string
	CategoryParentID string
	CategoryID       string
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("seed: %v\n%s", err, query)
	}
}

// SeedUser inserts a user and returns its id. A nil location leaves the
// user without an address.
func SeedUser(t *testing.T, db *sql.DB, email string, trader bool, locationID *string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db,
		`INSERT INTO users (id, email, username, is_trader, location_id) VALUES ($1, $2, $3, $4, $5)`,
		id, email, email, trader, locationID)
	return id
}

func SeedLocation(t *testing.T, db *sql.DB, country, city, state, street string) string {
	t.Helper()
	id := uuid.NewString()
	mustExec(t, db,
		`INSERT INTO locations (id, country, city, state, street) VALUES ($1, $2, $3, $4, $5)`,
		id, country, city, state, street)
	return id
}

// SeedTraderProfile gives a trader a commission rate such as "7.50".
func SeedTraderProfile(t *testing.T, db *sql.DB, userID, commissionRate string) {
	t.Helper()
	mustExec(t, db,
		`INSERT INTO trader_profiles (user_id, company_name, commission_rate, approved) VALUES ($1, 'Parts Co', $2, TRUE)`,
		userID, commissionRate)
}

func SeedFixture(t *testing.T, db *sql.DB) Fixture {
	t.Helper()
	suffix := uuid.NewString()[:8]

	f := Fixture{
		CustomerEmail: "buyer-" + suffix + "@example.com",
		TraderEmail:   "trader-" + suffix + "@example.com",
	}
	loc := SeedLocation(t, db, "EG", "Cairo", "Cairo", "12 Tahrir St")
	f.CustomerID = SeedUser(t, db, f.CustomerEmail, false, &loc)
	f.TraderID = SeedUser(t, db, f.TraderEmail, true, nil)
	SeedTraderProfile(t, db, f.TraderID, "10.00")

	f.CategoryParentID = uuid.NewString()
	mustExec(t, db, `INSERT INTO category_parents (id, name, slug) VALUES ($1, 'Brakes', $2)`,
		f.CategoryParentID, "brakes-"+suffix)
	f.CategoryID = uuid.NewString()
	mustExec(t, db, `INSERT INTO categories (id, parent_id, name, slug) VALUES ($1, $2, 'Brake pads', $3)`,
		f.CategoryID, f.CategoryParentID, "brake-pads-"+suffix)

	return f
}

type PartSeed struct {
	TraderID  string
	Price     string
	Quantity  int
	Threshold int
	Reorder   int
	Approved  bool
	Inactive  bool
}

// SeedPart inserts a part with a NEW log entry matching its quantity so the
// ledger stays consistent.
func SeedPart(t *testing.T, db *sql.DB, f Fixture, p PartSeed) string {
	t.Helper()
	if p.TraderID == "" {
		p.TraderID = f.TraderID
	}
	if p.Price == "" {
		p.Price = "10.00"
	}

	id := uuid.NewString()
	mustExec(t, db, `
		INSERT INTO parts (id, trader_id, category_id, category_parent_id, name, price, sku,
			quantity, low_stock_threshold, reorder_quantity, is_active, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, p.TraderID, f.CategoryID, f.CategoryParentID, "Part "+id[:8], p.Price, "SKU-"+id[:8],
		p.Quantity, p.Threshold, p.Reorder, !p.Inactive, p.Approved)

	if p.Quantity > 0 {
		mustExec(t, db,
			`INSERT INTO inventory_logs (id, part_id, quantity, log_type, notes) VALUES ($1, $2, $3, 'NEW', 'Initial stock')`,
			uuid.NewString(), id, p.Quantity)
	}
	return id
}

func Quantity(t *testing.T, db *sql.DB, partID string) int {
	t.Helper()
	var q int
	if err := db.QueryRowContext(context.Background(), `SELECT quantity FROM parts WHERE id = $1`, partID).Scan(&q); err != nil {
		t.Fatalf("read quantity of %s: %v", partID, err)
	}
	return q
}

func Count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}
