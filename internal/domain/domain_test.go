package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStockStatusFor(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		threshold int
		want      StockStatus
	}{
		{"empty", 0, 5, StockStatusOut},
		{"one unit", 1, 5, StockStatusLow},
		{"at threshold", 5, 5, StockStatusLow},
		{"above threshold", 6, 5, StockStatusIn},
		{"zero threshold", 1, 0, StockStatusIn},
		{"after order of 7 from 10", 3, 5, StockStatusLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StockStatusFor(tt.quantity, tt.threshold); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	if got := Available(10, 2); got != 8 {
		t.Errorf("expected 8, got %d", got)
	}
	if got := Available(3, 5); got != 0 {
		t.Errorf("expected holds above quantity to floor at 0, got %d", got)
	}

	level := NewStockLevel("p1", 10, 5, 7)
	if level.Available != 3 || level.StockStatus != StockStatusIn {
		t.Errorf("unexpected stock level: %+v", level)
	}
}

func TestOrderRecompute(t *testing.T) {
	t.Run("sums lines and commission per item rate", func(t *testing.T) {
		order := &Order{Items: []OrderItem{
			{Quantity: 2, Price: decimal.RequireFromString("19.99"), CommissionRate: decimal.RequireFromString("10")},
			{Quantity: 1, Price: decimal.RequireFromString("250.00"), CommissionRate: decimal.RequireFromString("7.5")},
		}}
		order.Recompute()

		if !order.Total.Equal(decimal.RequireFromString("289.98")) {
			t.Errorf("expected total 289.98, got %s", order.Total)
		}
		// 39.98*0.10 + 250*0.075 = 3.998 + 18.75 = 22.748
		if !order.Commission.Equal(decimal.RequireFromString("22.75")) {
			t.Errorf("expected commission 22.75, got %s", order.Commission)
		}
	})

	t.Run("is stable when recomputed from the same items", func(t *testing.T) {
		order := &Order{Items: []OrderItem{
			{Quantity: 3, Price: decimal.RequireFromString("0.35"), CommissionRate: decimal.RequireFromString("12.25")},
		}}
		order.Recompute()
		total, commission := order.Total, order.Commission
		order.Recompute()

		if !order.Total.Equal(total) || !order.Commission.Equal(commission) {
			t.Errorf("recompute drifted: %s/%s then %s/%s", total, commission, order.Total, order.Commission)
		}
	})

	t.Run("empty order", func(t *testing.T) {
		order := &Order{}
		order.Recompute()
		if !order.Total.IsZero() || !order.Commission.IsZero() {
			t.Errorf("expected zero totals, got %s/%s", order.Total, order.Commission)
		}
	})
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusProcessing}:   true,
		{OrderStatusPending, OrderStatusCancelled}:    true,
		{OrderStatusProcessing, OrderStatusShipped}:   true,
		{OrderStatusProcessing, OrderStatusCancelled}: true,
		{OrderStatusShipped, OrderStatusDelivered}:    true,
	}
	all := []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]OrderStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}

	if err := ValidateOrderTransition("o1", OrderStatusCancelled, OrderStatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected re-cancel to be an invalid transition, got %v", err)
	}
	if err := ValidateOrderTransition("o1", OrderStatusShipped, OrderStatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected shipped cancel to be rejected, got %v", err)
	}
	if OrderStatus("LOST").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestFulfillmentTransitions(t *testing.T) {
	if !PaymentStatusPending.CanTransition(PaymentStatusCompleted) || !PaymentStatusPending.CanTransition(PaymentStatusFailed) {
		t.Error("pending payment should settle")
	}
	if PaymentStatusCompleted.CanTransition(PaymentStatusFailed) {
		t.Error("completed payment must not fail afterwards")
	}
	if !ShippingStatusInProgress.CanTransition(ShippingStatusReturned) {
		t.Error("in-progress shipment may be returned")
	}
	if ShippingStatusPending.CanTransition(ShippingStatusDelivered) {
		t.Error("pending shipment cannot skip to delivered")
	}
	if ShippingStatusReturned.CanTransition(ShippingStatusPending) {
		t.Error("returned shipment is terminal")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&InsufficientStockError{PartID: "p"}, ErrInsufficientStock},
		{&InsufficientAvailableStockError{PartID: "p"}, ErrInsufficientAvailableStock},
		{&PartUnavailableError{PartID: "p"}, ErrPartUnavailable},
		{&AmountMismatchError{OrderID: "o"}, ErrAmountMismatch},
		{&MissingAddressError{OrderID: "o"}, ErrMissingAddress},
		{&InvalidTransitionError{Resource: "order"}, ErrInvalidTransition},
		{&DuplicateResourceError{Resource: "payment"}, ErrDuplicateResource},
		{Invalid("quantity", "must be positive"), ErrValidation},
	}

	for _, tt := range tests {
		wrapped := errors.Join(errors.New("context"), tt.err)
		if !errors.Is(wrapped, tt.sentinel) {
			t.Errorf("%T should match %v", tt.err, tt.sentinel)
		}
	}

	var stockErr *InsufficientStockError
	err := error(&InsufficientStockError{PartID: "p1", Requested: 5, Available: 3})
	if !errors.As(err, &stockErr) || stockErr.PartID != "p1" {
		t.Errorf("expected to extract part id, got %v", err)
	}
	if err.Error() != "insufficient stock for part p1: requested 5, available 3" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	var transitionErr *InvalidTransitionError
	err = ValidateOrderTransition("o1", OrderStatusDelivered, OrderStatusPending)
	if !errors.As(err, &transitionErr) || transitionErr.OrderID != "o1" {
		t.Errorf("expected order id on transition error, got %v", err)
	}
	err = &InvalidTransitionError{Resource: "payment", OrderID: "o2", From: "COMPLETED", To: "FAILED"}
	if err.Error() != "payment of order o2 cannot move from COMPLETED to FAILED" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestLocationAddressAndModelLabel(t *testing.T) {
	loc := Location{Street: "12 Main St", City: "Cairo", State: "", Country: "EG"}
	if got := loc.Address(); got != "12 Main St, Cairo, EG" {
		t.Errorf("unexpected address %q", got)
	}
	if got := (Location{}).Address(); got != "" {
		t.Errorf("expected empty address, got %q", got)
	}

	end := 2011
	model := CarModel{BrandName: "BMW", Name: "3 Series", ProductionStart: 2005, ProductionEnd: &end}
	if got := model.Label(); got != "BMW 3 Series (2005-2011)" {
		t.Errorf("unexpected label %q", got)
	}
	model.ProductionEnd = nil
	if got := model.Label(); got != "BMW 3 Series (2005-present)" {
		t.Errorf("unexpected label %q", got)
	}
}
