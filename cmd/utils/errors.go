package utils

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Expected request outcomes. Handlers surface these verbatim; anything else
// is treated as an infrastructure failure.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("slot no longer available")
	ErrForbidden    = errors.New("operation not permitted")
	ErrInvalidState = errors.New("invalid state for this operation")
	ErrValidation   = errors.New("validation failed")
)

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps the error taxonomy onto HTTP statuses. Callers may retry
// a 500 wholesale; the transaction boundary guarantees no partial effect.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrInvalidState):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
