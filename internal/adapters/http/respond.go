package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"civicwatch/internal/domain"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid or expired token")
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code and a typed JSON body. Server-side
// failures are logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Err != nil && status < http.StatusInternalServerError {
		msg = de.Err.Error()
	}
	switch {
	case status == http.StatusBadGateway:
		log.Warn("upstream failure", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "a dependent service failed"
	case status >= http.StatusInternalServerError:
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		kind, msg = "internal", "internal server error"
	}
	if kind == domain.KindRateLimited {
		w.Header().Set("Retry-After", "60")
		msg = "rate limit exceeded"
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
