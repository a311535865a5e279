package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestHandler(catalogURL, inventoryURL, ordersURL string, client *http.Client) *Handler {
	return NewHandler(
		NewServiceProxy(catalogURL, client),
		NewServiceProxy(inventoryURL, client),
		NewServiceProxy(ordersURL, client),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func passthrough(h http.HandlerFunc) http.HandlerFunc { return h }

func TestHandler_Routes(t *testing.T) {
	upstream := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"service": name, "path": r.URL.Path, "query": r.URL.RawQuery})
		}))
	}
	catalog, inventory, orders := upstream("catalog"), upstream("inventory"), upstream("orders")
	defer catalog.Close()
	defer inventory.Close()
	defer orders.Close()

	mux := http.NewServeMux()
	newTestHandler(catalog.URL, inventory.URL, orders.URL, http.DefaultClient).Routes(mux, passthrough)

	tests := []struct {
		method  string
		path    string
		service string
		want    string
	}{
		{http.MethodGet, "/catalog/parts?in_stock=true", "catalog", "/parts"},
		{http.MethodPost, "/catalog/parts/approve", "catalog", "/parts/approve"},
		{http.MethodGet, "/inventory/stock/p-1", "inventory", "/stock/p-1"},
		{http.MethodDelete, "/inventory/sessions/s-1/reservations", "inventory", "/sessions/s-1/reservations"},
		{http.MethodGet, "/orders", "orders", "/orders"},
		{http.MethodPost, "/orders/o-1/payment", "orders", "/orders/o-1/payment"},
		{http.MethodGet, "/suppliers/t-1/items", "orders", "/suppliers/t-1/items"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var got map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got["service"] != tt.service || got["path"] != tt.want {
				t.Errorf("expected %s %s, got %v", tt.service, tt.want, got)
			}
		})
	}

	t.Run("query string forwarded", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/parts?in_stock=true", nil))
		if !strings.Contains(rec.Body.String(), `"query":"in_stock=true"`) {
			t.Errorf("expected query to reach upstream, got %s", rec.Body.String())
		}
	})
}

func TestHandler_Proxy(t *testing.T) {
	t.Run("preserves downstream error status", func(t *testing.T) {
		orders := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"insufficient stock","code":"insufficient_stock"}`))
		}))
		defer orders.Close()

		handler := newTestHandler("http://unused", "http://unused", orders.URL, orders.Client())
		rec := httptest.NewRecorder()
		handler.HandleOrders(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`)))

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
	})

	t.Run("returns 502 when service unavailable", func(t *testing.T) {
		handler := newTestHandler("http://localhost:99999", "http://unused", "http://unused", &http.Client{})

		rec := httptest.NewRecorder()
		handler.HandleCatalog(rec, httptest.NewRequest(http.MethodGet, "/catalog/parts", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" || resp["code"] != "bad_gateway" {
			t.Errorf("unexpected body %v", resp)
		}
	})
}
