package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/partsmarket/internal/domain"
)

const testPartID = "6f1c2d9e-4b1a-4c55-9d0e-1f2a3b4c5d6e"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdjustParamsValidate(t *testing.T) {
	tests := []struct {
		name      string
		params    AdjustParams
		wantField string
	}{
		{"valid", AdjustParams{PartID: testPartID, Delta: -2, LogType: domain.LogTypeAdjustment}, ""},
		{"bad part id", AdjustParams{PartID: "nope", Delta: 1, LogType: domain.LogTypeRestock}, "part_id"},
		{"zero delta", AdjustParams{PartID: testPartID, LogType: domain.LogTypeRestock}, "quantity"},
		{"delta above column limit", AdjustParams{PartID: testPartID, Delta: domain.MaxQuantity + 1, LogType: domain.LogTypeRestock}, "quantity"},
		{"delta below column limit", AdjustParams{PartID: testPartID, Delta: -domain.MaxQuantity - 1, LogType: domain.LogTypeAdjustment}, "quantity"},
		{"largest deduction", AdjustParams{PartID: testPartID, Delta: -domain.MaxQuantity, LogType: domain.LogTypeAdjustment}, ""},
		{"unknown log type", AdjustParams{PartID: testPartID, Delta: 1, LogType: "SALE"}, "log_type"},
		{"bad actor", AdjustParams{PartID: testPartID, Delta: 1, LogType: domain.LogTypeNew, Actor: "admin"}, "actor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Errorf("expected validation error on %s, got %v", tt.wantField, err)
			}
		})
	}
}

func TestReserveParamsValidate(t *testing.T) {
	long := make([]byte, maxSessionKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}

	if err := (ReserveParams{PartID: testPartID, SessionKey: "s", Quantity: 1}).validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (ReserveParams{PartID: testPartID, SessionKey: "s"}).validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected zero quantity to be rejected, got %v", err)
	}
	if err := (ReserveParams{PartID: testPartID, SessionKey: "s", Quantity: domain.MaxQuantity + 1}).validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected oversized quantity to be rejected, got %v", err)
	}
	if err := (ReserveParams{PartID: testPartID, Quantity: 1}).validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected missing session to be rejected, got %v", err)
	}
	if err := (ReserveParams{PartID: testPartID, SessionKey: string(long), Quantity: 1}).validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected long session key to be rejected, got %v", err)
	}
}

func TestLowStockAlert(t *testing.T) {
	part := &lockedPart{id: testPartID, sku: "BRK-1", quantity: 10, lowStockThreshold: 5, reorderQuantity: 10, traderEmail: "t@example.com"}

	t.Run("in stock to low stock", func(t *testing.T) {
		event := lowStockAlert(part, 3)
		if event == nil {
			t.Fatal("expected an alert")
		}
		if event.StockStatus != domain.StockStatusLow || event.Quantity != 3 || event.TraderEmail != "t@example.com" {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("staying in stock", func(t *testing.T) {
		if event := lowStockAlert(part, 6); event != nil {
			t.Errorf("expected no alert, got %+v", event)
		}
	})

	t.Run("low to out of stock", func(t *testing.T) {
		low := *part
		low.quantity = 3
		event := lowStockAlert(&low, 0)
		if event == nil || event.StockStatus != domain.StockStatusOut {
			t.Errorf("expected out of stock alert, got %+v", event)
		}
	})

	t.Run("already low", func(t *testing.T) {
		low := *part
		low.quantity = 4
		if event := lowStockAlert(&low, 2); event != nil {
			t.Errorf("expected no repeat alert, got %+v", event)
		}
	})

	t.Run("restock never alerts", func(t *testing.T) {
		empty := *part
		empty.quantity = 0
		if event := lowStockAlert(&empty, 2); event != nil {
			t.Errorf("expected no alert on increase, got %+v", event)
		}
	})
}

type fakeSweepStore struct {
	mu    sync.Mutex
	calls []time.Time
	n     int64
	err   error
}

func (f *fakeSweepStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.n, f.err
}

func (f *fakeSweepStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSweeper(t *testing.T) {
	t.Run("sweep once passes current time", func(t *testing.T) {
		store := &fakeSweepStore{n: 3}
		s := NewSweeper(store, time.Minute, newTestLogger())
		fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return fixed }

		if removed := s.SweepOnce(context.Background()); removed != 3 {
			t.Errorf("expected 3 removed, got %d", removed)
		}
		if len(store.calls) != 1 || !store.calls[0].Equal(fixed) {
			t.Errorf("unexpected calls %v", store.calls)
		}
	})

	t.Run("errors are swallowed", func(t *testing.T) {
		store := &fakeSweepStore{err: errors.New("db down")}
		s := NewSweeper(store, time.Minute, newTestLogger())
		if removed := s.SweepOnce(context.Background()); removed != 0 {
			t.Errorf("expected 0 removed, got %d", removed)
		}
	})

	t.Run("run stops on cancel", func(t *testing.T) {
		store := &fakeSweepStore{}
		s := NewSweeper(store, 5*time.Millisecond, newTestLogger())
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			s.Run(ctx)
			close(done)
		}()

		deadline := time.After(2 * time.Second)
		for store.callCount() < 2 {
			select {
			case <-deadline:
				t.Fatal("sweeper did not tick")
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not stop after cancel")
		}
	})
}
