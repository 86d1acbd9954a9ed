package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	storefront "github.com/eugener/storefront/internal"
)

// maxBody is the maximum accepted request body size (1 MB).
const maxBody = 1 << 20

// Listing page bounds.
const (
	defaultLimit = 20
	maxLimit     = 100
)

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	return errorResponseType(msg, "invalid_request_error")
}

func errorResponseType(msg, typ string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = typ
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, storefront.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, storefront.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storefront.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storefront.ErrConflict), errors.Is(err, storefront.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, storefront.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, storefront.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and a client-safe message. Unexpected
// errors are logged in full and reported as "internal error" so storage
// details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusUnauthorized:
		writeJSON(w, status, errorResponseType("unauthorized", "authentication_error"))
	case http.StatusForbidden:
		writeJSON(w, status, errorResponseType("forbidden", "permission_error"))
	case http.StatusNotFound:
		writeJSON(w, status, errorResponseType("not found", "not_found_error"))
	case http.StatusConflict:
		if errors.Is(err, storefront.ErrOutOfStock) {
			writeJSON(w, status, errorResponseType(err.Error(), "stock_error"))
			return
		}
		writeJSON(w, status, errorResponseType("conflict", "conflict_error"))
	case http.StatusBadRequest:
		writeJSON(w, status, errorResponse(err.Error()))
	case http.StatusTooManyRequests:
		writeJSON(w, status, errorResponseType("rate limit exceeded", "rate_limit_error"))
	default:
		slog.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path),
			slog.String("request_id", storefront.RequestIDFromContext(r.Context())),
		)
		writeJSON(w, status, errorResponseType("internal error", "api_error"))
	}
}

// jsonCT is a pre-allocated header value slice for direct map assignment.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON limits body size, decodes JSON into v, and writes a 400 on error.
// Returns true if decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}
	return true
}

// --- Pagination helpers ---

type pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

type listResponse struct {
	Data       any         `json:"data"`
	Pagination *pagination `json:"pagination,omitempty"`
}

func parsePagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	if offset < 0 {
		offset = 0
	}
	return
}
