package cache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Middleware caches the wrapped handler's responses for ttl.
// Requests that are not cacheable are served by next directly, with
// streaming and flushing intact. Cacheable requests run next against a
// buffering writer so the body can be stored before it is sent.
func (c *ResponseCache) Middleware(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := RequestFromHTTP(r)
			if !req.Cacheable() {
				c.countBypass()
				next.ServeHTTP(w, r)
				return
			}
			res := c.Intercept(r.Context(), req, ttl, func(ctx context.Context) Result {
				cw := &captureWriter{header: make(http.Header)}
				next.ServeHTTP(cw, r.WithContext(ctx))
				return cw.result()
			})
			WriteResult(w, res)
		})
	}
}

// WriteResult copies res onto w.
func WriteResult(w http.ResponseWriter, res Result) {
	dst := w.Header()
	for k, v := range res.Header {
		dst[k] = v
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(res.Body); err != nil {
		slog.Debug("write cached response", "error", err)
	}
}

// captureWriter buffers a handler's response. WriteHeader records only the
// first status code, matching net/http semantics.
type captureWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (cw *captureWriter) Header() http.Header { return cw.header }

func (cw *captureWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.status = code
		cw.wroteHeader = true
	}
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.body.Write(b)
}

func (cw *captureWriter) result() Result {
	status := cw.status
	if !cw.wroteHeader {
		status = http.StatusOK
	}
	return Result{Status: status, Header: cw.header, Body: cw.body.Bytes()}
}
