package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/partsmarket/internal/domain"
	"github.com/joao-fontenele/partsmarket/internal/httpx"
	"github.com/joao-fontenele/partsmarket/internal/messaging"
)

type fakeLedger struct {
	quantity   int
	adjustCall *AdjustParams
	adjustErr  error
	lowStock   *domain.LowStockEvent
}

func (f *fakeLedger) Adjust(_ context.Context, p AdjustParams) (*AdjustResult, error) {
	f.adjustCall = &p
	if f.adjustErr != nil {
		return nil, f.adjustErr
	}
	f.quantity += p.Delta
	return &AdjustResult{NewQuantity: f.quantity, LowStock: f.lowStock}, nil
}

func (f *fakeLedger) Restock(ctx context.Context, partID string, quantity int, actor string) (*AdjustResult, error) {
	return f.Adjust(ctx, AdjustParams{PartID: partID, Delta: quantity, LogType: domain.LogTypeRestock, Actor: actor})
}

func (f *fakeLedger) BatchRestock(_ context.Context, partIDs []string, _ string) []RestockOutcome {
	out := make([]RestockOutcome, 0, len(partIDs))
	for _, id := range partIDs {
		if id == "bad" {
			out = append(out, RestockOutcome{PartID: id, Error: "part bad: not found"})
			continue
		}
		out = append(out, RestockOutcome{PartID: id, Restocked: 10, NewQuantity: 10})
	}
	return out
}

func (f *fakeLedger) AvailableQuantity(_ context.Context, partID string) (*domain.StockLevel, error) {
	if partID != testPartID {
		return nil, domain.ErrNotFound
	}
	level := domain.NewStockLevel(partID, f.quantity, 5, 2)
	return &level, nil
}

func (f *fakeLedger) History(context.Context, string, int) ([]domain.InventoryLog, error) {
	return []domain.InventoryLog{{PartID: testPartID, Quantity: 10, LogType: domain.LogTypeNew}}, nil
}

func (f *fakeLedger) Audit(_ context.Context, partID string) (*AuditReport, error) {
	return &AuditReport{PartID: partID, Quantity: f.quantity, LedgerSum: f.quantity, Consistent: true}, nil
}

type fakeReservations struct {
	reserved   *ReserveParams
	reserveErr error
	releaseErr error
}

func (f *fakeReservations) Reserve(_ context.Context, p ReserveParams) (*domain.StockReservation, error) {
	f.reserved = &p
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	return &domain.StockReservation{ID: "r1", PartID: p.PartID, Quantity: p.Quantity, SessionKey: p.SessionKey}, nil
}

func (f *fakeReservations) Release(context.Context, string) error { return f.releaseErr }

func (f *fakeReservations) ReleaseSession(context.Context, string) (int64, error) { return 2, nil }

func (f *fakeReservations) ListSession(context.Context, string) ([]domain.StockReservation, error) {
	return []domain.StockReservation{}, nil
}

type capturedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	events []capturedEvent
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	f.events = append(f.events, capturedEvent{topic, key, event})
	return nil
}

func newTestMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Routes(mux, nil)
	return mux
}

func TestHandler_GetStock(t *testing.T) {
	h := NewHandler(&fakeLedger{quantity: 10}, &fakeReservations{}, nil, newTestLogger())
	mux := newTestMux(h)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/"+testPartID, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var level domain.StockLevel
		if err := json.NewDecoder(rec.Body).Decode(&level); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if level.Available != 8 || level.Reserved != 2 {
			t.Errorf("unexpected level %+v", level)
		}
	})

	t.Run("missing part", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/other", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandler_Adjust(t *testing.T) {
	t.Run("defaults log type and forwards actor", func(t *testing.T) {
		ledger := &fakeLedger{quantity: 10}
		mux := newTestMux(NewHandler(ledger, &fakeReservations{}, nil, newTestLogger()))

		req := httptest.NewRequest(http.MethodPost, "/stock/"+testPartID+"/adjust", strings.NewReader(`{"quantity":-3,"notes":"damaged"}`))
		req.Header.Set(httpx.UserIDHeader, "admin-1")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ledger.adjustCall.LogType != domain.LogTypeAdjustment || ledger.adjustCall.Actor != "admin-1" || ledger.adjustCall.Delta != -3 {
			t.Errorf("unexpected adjust params %+v", ledger.adjustCall)
		}
	})

	t.Run("zero quantity rejected before the ledger", func(t *testing.T) {
		ledger := &fakeLedger{}
		mux := newTestMux(NewHandler(ledger, &fakeReservations{}, nil, newTestLogger()))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/"+testPartID+"/adjust", strings.NewReader(`{"quantity":0}`)))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if ledger.adjustCall != nil {
			t.Error("ledger should not be called")
		}
	})

	t.Run("oversized quantity rejected before the ledger", func(t *testing.T) {
		for _, body := range []string{`{"quantity":2147483648}`, `{"quantity":-2147483648}`, `{"quantity":9223372036854775807}`} {
			ledger := &fakeLedger{}
			mux := newTestMux(NewHandler(ledger, &fakeReservations{}, nil, newTestLogger()))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/"+testPartID+"/adjust", strings.NewReader(body)))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, rec.Code)
			}
			if ledger.adjustCall != nil {
				t.Errorf("%s: ledger should not be called", body)
			}
		}
	})

	t.Run("insufficient stock is a conflict", func(t *testing.T) {
		ledger := &fakeLedger{adjustErr: &domain.InsufficientStockError{PartID: testPartID, Requested: 5, Available: 3}}
		mux := newTestMux(NewHandler(ledger, &fakeReservations{}, nil, newTestLogger()))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/"+testPartID+"/adjust", strings.NewReader(`{"quantity":-5}`)))

		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), testPartID) {
			t.Errorf("expected part id in body, got %s", rec.Body.String())
		}
	})

	t.Run("publishes low stock alert", func(t *testing.T) {
		ledger := &fakeLedger{quantity: 10, lowStock: &domain.LowStockEvent{PartID: testPartID, StockStatus: domain.StockStatusLow}}
		publisher := &fakePublisher{}
		mux := newTestMux(NewHandler(ledger, &fakeReservations{}, publisher, newTestLogger()))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/"+testPartID+"/adjust", strings.NewReader(`{"quantity":-7}`)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(publisher.events) != 1 || publisher.events[0].topic != messaging.TopicLowStock || publisher.events[0].key != testPartID {
			t.Errorf("unexpected events %+v", publisher.events)
		}
	})
}

func TestHandler_BatchRestock(t *testing.T) {
	mux := newTestMux(NewHandler(&fakeLedger{}, &fakeReservations{}, nil, newTestLogger()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/restock", strings.NewReader(`{"part_ids":["a","bad"]}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var outcomes []RestockOutcome
	if err := json.NewDecoder(rec.Body).Decode(&outcomes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(outcomes) != 2 || outcomes[0].Error != "" || outcomes[1].Error == "" {
		t.Errorf("unexpected outcomes %+v", outcomes)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/restock", strings.NewReader(`{"part_ids":[]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected empty batch to be rejected, got %d", rec.Code)
	}
}

func TestHandler_Reservations(t *testing.T) {
	t.Run("reserve uses session header", func(t *testing.T) {
		store := &fakeReservations{}
		mux := newTestMux(NewHandler(&fakeLedger{}, store, nil, newTestLogger()))

		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{"part_id":"`+testPartID+`","quantity":2,"ttl_seconds":60}`))
		req.Header.Set(httpx.SessionKeyHeader, "sess-1")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if store.reserved.SessionKey != "sess-1" || store.reserved.TTL.Seconds() != 60 {
			t.Errorf("unexpected reserve params %+v", store.reserved)
		}
	})

	t.Run("insufficient available stock", func(t *testing.T) {
		store := &fakeReservations{reserveErr: &domain.InsufficientAvailableStockError{PartID: testPartID, Requested: 2, Available: 1}}
		mux := newTestMux(NewHandler(&fakeLedger{}, store, nil, newTestLogger()))

		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(`{"part_id":"`+testPartID+`","quantity":2}`))
		req.Header.Set(httpx.SessionKeyHeader, "sess-1")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("release unknown reservation", func(t *testing.T) {
		store := &fakeReservations{releaseErr: domain.ErrNotFound}
		mux := newTestMux(NewHandler(&fakeLedger{}, store, nil, newTestLogger()))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reservations/r9", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("release session", func(t *testing.T) {
		mux := newTestMux(NewHandler(&fakeLedger{}, &fakeReservations{}, nil, newTestLogger()))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/sess-1/reservations", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"released":2`) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}
