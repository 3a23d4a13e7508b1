package docserver

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// contextWithTimeout arms a per-request watchdog; breaching it causes the
// context to cancel, which the repository's blocking I/O should observe.
func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, func()) {
	return context.WithTimeout(parent, d)
}

// headResponseWriter strips any X-Gsa* headers and discards the body,
// turning a GET's full response into a HEAD response. It backs the
// heartbeat rewrite below.
type headResponseWriter struct {
	http.ResponseWriter
}

func (h *headResponseWriter) Header() http.Header {
	return h.ResponseWriter.Header()
}

func (h *headResponseWriter) Write(b []byte) (int, error) {
	// HEAD must not send a body; report success without writing anything.
	return len(b), nil
}

func (h *headResponseWriter) WriteHeader(status int) {
	hdr := h.ResponseWriter.Header()
	for k := range hdr {
		if strings.HasPrefix(strings.ToLower(k), "x-gsa") {
			hdr.Del(k)
		}
	}
	h.ResponseWriter.WriteHeader(status)
}

// HeartbeatHandler rewrites GET /heartbeat/<id> into an internal HEAD
// /doc/<id> dispatch, per spec.md §4.5's "sibling heartbeat path".
func (s *Server) HeartbeatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rewritten := r.Clone(r.Context())
		rewritten.Method = http.MethodHead
		rewritten.URL.Path = strings.Replace(rewritten.URL.Path, "/heartbeat/", "/doc/", 1)

		select {
		case s.waiting <- struct{}{}:
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		defer func() { <-s.waiting }()

		select {
		case s.gate <- struct{}{}:
			defer func() { <-s.gate }()
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		s.serve(w, rewritten, true)
	}
}
