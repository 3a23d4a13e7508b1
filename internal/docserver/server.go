// Package docserver implements the HTTP endpoint that serves one document
// pull per request: decode the request URI to an identifier via idcodec,
// enforce the trusted-caller check, invoke the repository, and translate its
// Response state-machine transition into the actual HTTP response.
package docserver

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/docrequest"
	"github.com/aras-services/gsa-adaptor/internal/idcodec"
	"github.com/aras-services/gsa-adaptor/internal/repository"
)

// Options configures a Server.
type Options struct {
	// TrustedPeers is the set of caller addresses (typically the appliance)
	// allowed to see non-public documents. Empty means "trust everyone" —
	// operators are expected to populate this from config in production.
	TrustedPeers map[string]bool
	// PublicDocIds are identifiers servable to any caller regardless of the
	// trusted-peer check, e.g. adaptor.markDocsPublic in the properties file.
	PublicDocIds map[string]bool
	// MaxWorkers bounds concurrent repository invocations; server.maxWorkerThreads.
	MaxWorkers int
	// QueueCapacity bounds the number of requests waiting for a worker slot
	// before new requests are aborted immediately; server.queueCapacity.
	QueueCapacity int
	// RequestTimeout arms a per-request watchdog before invoking the
	// repository; a breach tears down the connection.
	RequestTimeout time.Duration
}

// Server serves GET/HEAD /doc/<encoded-id> and the /heartbeat rewrite.
type Server struct {
	codec   *idcodec.Codec
	repo    repository.Repository
	logger  *zap.Logger
	opts    Options
	gate    chan struct{} // bounded worker pool: one slot per in-flight request
	waiting chan struct{} // bounded queue of requests waiting for a gate slot
}

// New builds a Server. codec decodes request URIs back to DocumentIds; repo
// is the connector-author-supplied Repository.
func New(codec *idcodec.Codec, repo repository.Repository, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 50
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 100
	}
	return &Server{
		codec:   codec,
		repo:    repo,
		logger:  logger,
		opts:    opts,
		gate:    make(chan struct{}, opts.MaxWorkers),
		waiting: make(chan struct{}, opts.QueueCapacity),
	}
}

// ServeHTTP implements http.Handler for a /doc/<id> request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	select {
	case s.waiting <- struct{}{}:
	default:
		// Queue is full: abort immediately without holding any resources,
		// the in-band "abort immediately" marker from spec.md §5.
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

	s.serve(w, r, r.Method == http.MethodHead)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, headOnly bool) {
	docID, err := s.codec.Decode(r.URL.RequestURI())
	if err != nil {
		s.logger.Debug("docserver: decode failed", zap.Error(err), zap.String("uri", r.URL.RequestURI()))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	isGSA := s.isTrustedPeer(r)
	if !isGSA && !s.opts.PublicDocIds[docID] {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	req := docrequest.NewRequest(r, docID, isGSA)

	ctx := r.Context()
	var cancel func()
	if s.opts.RequestTimeout > 0 {
		ctx, cancel = contextWithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	hw := w
	if headOnly {
		hw = &headResponseWriter{ResponseWriter: w}
	}
	resp := docrequest.NewResponse(hw, isGSA)

	if err := s.repo.GetDocContent(ctx, req, resp); err != nil {
		s.logger.Error("docserver: repository error", zap.Error(err), zap.String("docId", docID))
		if !resp.Finished() {
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	if !resp.Finished() {
		s.logger.Error("docserver: repository returned without a response state transition", zap.String("docId", docID))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// isTrustedPeer reports whether the caller's address is in the configured
// trusted-peer set. An empty TrustedPeers set trusts every caller, which is
// the dev-mode default; operators populate it from gsa.hostname in
// production.
func (s *Server) isTrustedPeer(r *http.Request) bool {
	if len(s.opts.TrustedPeers) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return s.opts.TrustedPeers[host]
}
