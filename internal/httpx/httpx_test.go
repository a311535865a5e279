package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/partsmarket/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantPartID  string
		wantOrderID string
	}{
		{"insufficient stock", &domain.InsufficientStockError{PartID: "p1", Requested: 5, Available: 3}, http.StatusConflict, "insufficient_stock", "p1", ""},
		{"wrapped available", fmt.Errorf("reserve: %w", &domain.InsufficientAvailableStockError{PartID: "p2"}), http.StatusConflict, "insufficient_available_stock", "p2", ""},
		{"order transition", &domain.InvalidTransitionError{Resource: "order", OrderID: "o1"}, http.StatusConflict, "invalid_transition", "", "o1"},
		{"payment transition", &domain.InvalidTransitionError{Resource: "payment", OrderID: "o2", From: "COMPLETED", To: "FAILED"}, http.StatusConflict, "invalid_transition", "", "o2"},
		{"duplicate", &domain.DuplicateResourceError{Resource: "payment", OrderID: "o1"}, http.StatusConflict, "duplicate_resource", "", "o1"},
		{"unavailable", &domain.PartUnavailableError{PartID: "p3"}, http.StatusUnprocessableEntity, "part_unavailable", "p3", ""},
		{"amount", &domain.AmountMismatchError{OrderID: "o1"}, http.StatusUnprocessableEntity, "amount_mismatch", "", "o1"},
		{"address", &domain.MissingAddressError{OrderID: "o1"}, http.StatusUnprocessableEntity, "missing_address", "", "o1"},
		{"validation", domain.Invalid("quantity", "must be positive"), http.StatusBadRequest, "validation_failed", "", ""},
		{"not found", fmt.Errorf("part p9: %w", domain.ErrNotFound), http.StatusNotFound, "not_found", "", ""},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, newTestLogger(), tt.err, "request failed")

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
			if body.PartID != tt.wantPartID {
				t.Errorf("expected part_id %q, got %q", tt.wantPartID, body.PartID)
			}
			if body.OrderID != tt.wantOrderID {
				t.Errorf("expected order_id %q, got %q", tt.wantOrderID, body.OrderID)
			}
		})
	}

	t.Run("internal errors do not leak", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, newTestLogger(), errors.New("pq: password authentication failed"), "request failed")
		if strings.Contains(rec.Body.String(), "password") {
			t.Errorf("internal error text leaked: %s", rec.Body.String())
		}
	})
}

type testRequest struct {
	PartID   string `json:"part_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

func TestDecode(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"part_id":"p1","quantity":2}`))
		var dst testRequest
		if err := Decode(req, &dst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dst.PartID != "p1" || dst.Quantity != 2 {
			t.Errorf("unexpected decode result: %+v", dst)
		}
	})

	t.Run("reports json field name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"part_id":"p1","quantity":0}`))
		var dst testRequest
		err := Decode(req, &dst)

		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if ve.Field != "quantity" {
			t.Errorf("expected field quantity, got %s", ve.Field)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var dst testRequest
		if err := Decode(req, &dst); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=abc&offset=5", nil)
	req.Header.Set(UserIDHeader, " user-1 ")
	req.Header.Set(SessionKeyHeader, "sess")

	if got := UserID(req); got != "user-1" {
		t.Errorf("expected user-1, got %q", got)
	}
	if got := SessionKey(req); got != "sess" {
		t.Errorf("expected sess, got %q", got)
	}
	if _, err := IntQuery(req, "limit", 20); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for limit, got %v", err)
	}
	if n, _ := IntQuery(req, "offset", 0); n != 5 {
		t.Errorf("expected offset 5, got %d", n)
	}
	if n, _ := IntQuery(req, "page", 1); n != 1 {
		t.Errorf("expected fallback 1, got %d", n)
	}
}
