package catalog

import (
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Brake Pads", "brake-pads"},
		{"  Oil & Air Filters ", "oil-air-filters"},
		{"Spark-Plugs--NGK", "spark-plugs-ngk"},
		{"Zündkerzen 2024", "zndkerzen-2024"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildPartQuery(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("defaults to visible parts and first page", func(t *testing.T) {
		query, args := buildPartQuery(PartFilter{}, now)

		if !strings.Contains(query, "WHERE p.is_active AND p.approved") {
			t.Errorf("expected visibility filter, got %s", query)
		}
		if !strings.Contains(query, "r.expires_at > $1") {
			t.Errorf("expected reservation expiry filter, got %s", query)
		}
		if len(args) != 3 || args[1] != defaultPageSize || args[2] != 0 {
			t.Errorf("unexpected args %v", args)
		}
		if ts, ok := args[0].(time.Time); !ok || !ts.Equal(now) {
			t.Errorf("expected now as first arg, got %v", args[0])
		}
	})

	t.Run("combines filters in order", func(t *testing.T) {
		featured := true
		query, args := buildPartQuery(PartFilter{
			CategoryID: "cat",
			Featured:   &featured,
			InStock:    true,
			CarModelID: "model",
			BrandID:    "brand",
			Limit:      500,
			Offset:     40,
		}, now)

		for _, want := range []string{
			"p.category_id = $2",
			"p.is_featured = $3",
			"p.quantity > 0",
			"c.car_model_id = $4",
			"m.brand_id = $5",
			"LIMIT $6 OFFSET $7",
		} {
			if !strings.Contains(query, want) {
				t.Errorf("expected %q in %s", want, query)
			}
		}
		if args[5] != maxPageSize {
			t.Errorf("expected limit capped at %d, got %v", maxPageSize, args[5])
		}
		if args[6] != 40 {
			t.Errorf("expected offset 40, got %v", args[6])
		}
	})

	t.Run("hidden parts for admin listing", func(t *testing.T) {
		query, _ := buildPartQuery(PartFilter{IncludeHidden: true}, now)
		if strings.Contains(query, "FROM parts p WHERE") {
			t.Errorf("expected no where clause on parts, got %s", query)
		}
	})
}

func TestPartFilterValidate(t *testing.T) {
	if err := (PartFilter{CategoryID: "6f1c2d9e-4b1a-4c55-9d0e-1f2a3b4c5d6e"}).validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (PartFilter{BrandID: "bmw"}).validate(); err == nil {
		t.Error("expected non-UUID brand to be rejected")
	}
}
