package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joao-fontenele/partsmarket/internal/catalog"
	"github.com/joao-fontenele/partsmarket/internal/domain"
)

func TestWriteReport(t *testing.T) {
	parts := []catalog.LowStockPart{
		{ID: "p-1", SKU: "BRK-001", Name: "Brake pad", TraderEmail: "t@example.com", Quantity: 0, LowStockThreshold: 5, ReorderQuantity: 10, StockStatus: domain.StockStatusOut},
		{ID: "p-2", SKU: "FLT-002", Name: "Oil filter", TraderEmail: "t@example.com", Quantity: 3, LowStockThreshold: 5, ReorderQuantity: 12, StockStatus: domain.StockStatusLow},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeReport(&buf, parts, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"SKU", "BRK-001", "out_of_stock", "FLT-002", "2 part(s) need restocking."} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeReport(&buf, parts, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []catalog.LowStockPart
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 2 || got[1].ReorderQuantity != 12 {
			t.Errorf("unexpected report %+v", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := writeReport(&buf, nil, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "All parts are above") {
			t.Errorf("unexpected output %q", buf.String())
		}

		buf.Reset()
		if err := writeReport(&buf, nil, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("expected empty JSON array, got %q", buf.String())
		}
	})
}
