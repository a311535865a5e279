package orders

import (
	"errors"
	"math"
	"testing"

	"github.com/joao-fontenele/partsmarket/internal/domain"
)

const (
	partA = "11111111-1111-4111-8111-111111111111"
	partB = "22222222-2222-4222-8222-222222222222"
)

func TestNormalizeItems(t *testing.T) {
	t.Run("merges duplicates and sorts", func(t *testing.T) {
		items, err := normalizeItems([]ItemRequest{
			{PartID: partB, Quantity: 1},
			{PartID: partA, Quantity: 2},
			{PartID: "22222222-2222-4222-8222-222222222222", Quantity: 3},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(items))
		}
		if items[0].PartID != partA || items[0].Quantity != 2 {
			t.Errorf("unexpected first line %+v", items[0])
		}
		if items[1].PartID != partB || items[1].Quantity != 4 {
			t.Errorf("unexpected second line %+v", items[1])
		}
	})

	t.Run("accepts merged quantity at the column limit", func(t *testing.T) {
		items, err := normalizeItems([]ItemRequest{
			{PartID: partA, Quantity: domain.MaxQuantity - 1},
			{PartID: partA, Quantity: 1},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if items[0].Quantity != domain.MaxQuantity {
			t.Errorf("expected %d, got %d", domain.MaxQuantity, items[0].Quantity)
		}
	})

	t.Run("canonicalises uppercase ids", func(t *testing.T) {
		items, err := normalizeItems([]ItemRequest{{PartID: "AAAAAAAA-AAAA-4AAA-8AAA-AAAAAAAAAAAA", Quantity: 1}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if items[0].PartID != "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa" {
			t.Errorf("expected lowercase id, got %s", items[0].PartID)
		}
	})

	tests := []struct {
		name  string
		items []ItemRequest
	}{
		{"empty", nil},
		{"zero quantity", []ItemRequest{{PartID: partA, Quantity: 0}}},
		{"negative quantity", []ItemRequest{{PartID: partA, Quantity: -1}}},
		{"bad id", []ItemRequest{{PartID: "brake-pad", Quantity: 1}}},
		{"merged quantity overflows", []ItemRequest{
			{PartID: partA, Quantity: math.MaxInt64},
			{PartID: partA, Quantity: math.MaxInt64},
			{PartID: partA, Quantity: 3},
		}},
		{"merged quantity above column limit", []ItemRequest{
			{PartID: partA, Quantity: domain.MaxQuantity},
			{PartID: partA, Quantity: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := normalizeItems(tt.items); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRejectionReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&domain.InsufficientStockError{PartID: partA}, "insufficient_stock"},
		{&domain.PartUnavailableError{PartID: partA}, "part_unavailable"},
		{domain.Invalid("items", "empty"), "validation"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := rejectionReason(tt.err); got != tt.want {
			t.Errorf("rejectionReason(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
