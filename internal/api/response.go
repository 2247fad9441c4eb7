package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

type errorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Profile *domain.Profile `json:"profile,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// заголовки уже отправлены, ошибку кодирования вернуть клиенту нельзя
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf сопоставляет категорию ошибки с HTTP-кодом.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, "PERSISTENCE"
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "MODEL_UNAVAILABLE"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "an unexpected error occurred"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
