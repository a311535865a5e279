package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/partsmarket/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	PartID  string `json:"part_id,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	WriteJSON(w, logger, status, errorBody{Error: message, Code: code})
}

// Error maps err onto a status code and error body. Unrecognised errors
// are logged and reported as a 500 without leaking their text.
func Error(w http.ResponseWriter, logger *slog.Logger, err error, msg string, attrs ...any) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, append([]any{"error", err}, attrs...)...)
	} else {
		logger.Warn(msg, append([]any{"error", err, "code", body.Code}, attrs...)...)
	}
	WriteJSON(w, logger, status, body)
}

func classify(err error) (int, errorBody) {
	var (
		stockErr       *domain.InsufficientStockError
		availableErr   *domain.InsufficientAvailableStockError
		unavailableErr *domain.PartUnavailableError
		amountErr      *domain.AmountMismatchError
		addressErr     *domain.MissingAddressError
		transitionErr  *domain.InvalidTransitionError
		duplicateErr   *domain.DuplicateResourceError
		validationErr  *domain.ValidationError
	)

	switch {
	case errors.As(err, &stockErr):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "insufficient_stock", PartID: stockErr.PartID}
	case errors.As(err, &availableErr):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "insufficient_available_stock", PartID: availableErr.PartID}
	case errors.As(err, &transitionErr):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition", OrderID: transitionErr.OrderID}
	case errors.As(err, &duplicateErr):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: "duplicate_resource", OrderID: duplicateErr.OrderID}
	case errors.As(err, &unavailableErr):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "part_unavailable", PartID: unavailableErr.PartID}
	case errors.As(err, &amountErr):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "amount_mismatch", OrderID: amountErr.OrderID}
	case errors.As(err, &addressErr):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: "missing_address", OrderID: addressErr.OrderID}
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation_failed"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal server error", Code: "internal"}
}
