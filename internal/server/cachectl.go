package server

import (
	"net/http"
)

type invalidateResponse struct {
	Match   string `json:"match"`
	Removed int    `json:"removed"`
	Purged  bool   `json:"purged,omitempty"`
}

type sweepResponse struct {
	Removed int `json:"removed"`
}

// requireCache writes 404 when response caching is disabled.
func (s *server) requireCache(w http.ResponseWriter) bool {
	if s.deps.Cache == nil {
		writeJSON(w, http.StatusNotFound, errorResponseType("response cache is disabled", "not_found_error"))
		return false
	}
	return true
}

func (s *server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Cache.Stats(r.Context()))
}

// handleCacheInvalidate removes entries whose key contains ?match=.
// Without match the whole table is cleared.
func (s *server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w) {
		return
	}
	match := r.URL.Query().Get("match")
	if match == "" {
		s.deps.Cache.InvalidateAll(r.Context())
		writeJSON(w, http.StatusOK, invalidateResponse{Purged: true})
		return
	}
	n := s.deps.Cache.Invalidate(r.Context(), match)
	writeJSON(w, http.StatusOK, invalidateResponse{Match: match, Removed: n})
}

func (s *server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	if !s.requireCache(w) {
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Removed: s.deps.Cache.Sweep(r.Context())})
}
