// Package docrequest models the Request/Response handle pair the
// DocServer hands to the repository for one document pull: the inbound
// conditional-GET view and the outbound response state machine.
package docrequest

import (
	"io"
	"net/http"
	"time"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/apperr"
)

// State is the Response handle's current state.
type State int

const (
	StateSetup State = iota
	StateNotModified
	StateNotFound
	StateNoContent
	StateSendBody
)

func (s State) String() string {
	switch s {
	case StateNotModified:
		return "NOT_MODIFIED"
	case StateNotFound:
		return "NOT_FOUND"
	case StateNoContent:
		return "NO_CONTENT"
	case StateSendBody:
		return "SEND_BODY"
	default:
		return "SETUP"
	}
}

// Response is the write-once handle the repository uses to answer a
// document pull. It is not safe for concurrent use: one request, one
// goroutine, per spec.md §5.
type Response struct {
	w      http.ResponseWriter
	state  State
	isGSA  bool // suppresses ACL/metadata emission when the caller isn't the appliance

	contentType      string
	lastModified     *time.Time
	displayURL       string
	metadata         *acl.Metadata
	docAcl           *acl.Acl
	anchors          []anchor
	noIndex          bool
	noFollow         bool
	noArchive        bool
	lock             bool
	crawlOnce        bool
	forceTransmit    *bool
	params           map[string]string

	headersSent bool
}

type anchor struct {
	text, uri string
}

// NewResponse wraps w. isGSA reports whether the caller was verified as the
// appliance (governs ACL/metadata header emission).
func NewResponse(w http.ResponseWriter, isGSA bool) *Response {
	return &Response{w: w, isGSA: isGSA, contentType: "text/plain", params: map[string]string{}}
}

// State returns the handle's current state.
func (r *Response) State() State { return r.state }

func (r *Response) requireSetup(op string) error {
	if r.state != StateSetup {
		return apperr.New(apperr.KindStateViolation,
			"docrequest: "+op+" called outside SETUP state (current: "+r.state.String()+")")
	}
	return nil
}

// RespondNotModified transitions SETUP -> NOT_MODIFIED and writes HTTP 304.
func (r *Response) RespondNotModified() error {
	if err := r.requireSetup("RespondNotModified"); err != nil {
		return err
	}
	r.state = StateNotModified
	r.w.WriteHeader(http.StatusNotModified)
	r.headersSent = true
	return nil
}

// RespondNotFound transitions SETUP -> NOT_FOUND and writes HTTP 404.
func (r *Response) RespondNotFound() error {
	if err := r.requireSetup("RespondNotFound"); err != nil {
		return err
	}
	r.state = StateNotFound
	r.w.WriteHeader(http.StatusNotFound)
	r.headersSent = true
	return nil
}

// RespondNoContent transitions SETUP -> NO_CONTENT and writes HTTP 204.
func (r *Response) RespondNoContent() error {
	if err := r.requireSetup("RespondNoContent"); err != nil {
		return err
	}
	r.state = StateNoContent
	r.w.WriteHeader(http.StatusNoContent)
	r.headersSent = true
	return nil
}

// GetOutputStream transitions SETUP -> SEND_BODY (or stays in SEND_BODY on a
// later call) and returns an io.Writer to stream the body through. Headers
// (status, metadata, ACL, anchors, flags) are committed lazily on the first
// write.
func (r *Response) GetOutputStream() (io.Writer, error) {
	if r.state != StateSetup && r.state != StateSendBody {
		return nil, apperr.New(apperr.KindStateViolation,
			"docrequest: GetOutputStream called outside SETUP/SEND_BODY state (current: "+r.state.String()+")")
	}
	r.state = StateSendBody
	if !r.headersSent {
		r.commitHeaders()
	}
	return r.w, nil
}

func (r *Response) commitHeaders() {
	r.headersSent = true
	h := r.w.Header()
	h.Set("Content-Type", r.contentType)
	if r.lastModified != nil {
		h.Set("Last-Modified", r.lastModified.UTC().Format(http.TimeFormat))
	}
	if r.displayURL != "" {
		h.Set("X-Gsa-Doc-Id", r.displayURL)
	}
	if r.isGSA {
		if r.metadata != nil {
			for _, p := range r.metadata.All() {
				h.Add("X-Gsa-External-Metadata", encodeMetaHeader(p.Key, p.Value))
			}
		}
		if r.docAcl != nil {
			for _, h2 := range encodeAclHeaders(*r.docAcl) {
				h.Add("X-Gsa-External-Metadata", h2)
			}
		}
	}
	for _, a := range r.anchors {
		h.Add("X-Gsa-External-Anchor", a.text+"="+a.uri)
	}
	if r.noIndex {
		h.Set("X-Gsa-External-Metadata-Noindex", "true")
	}
	if r.noFollow {
		h.Set("X-Robots-Tag", "nofollow")
	}
	if r.noArchive {
		h.Set("X-Gsa-Noarchive", "true")
	}
	if r.lock {
		h.Set("X-Gsa-Lock", "true")
	}
	if r.crawlOnce {
		h.Set("X-Gsa-Crawl-Once", "true")
	}
	if r.forceTransmit != nil {
		h.Set("X-Gsa-Transmit-If-Not-Modified", boolHeaderValue(*r.forceTransmit))
	}
	r.w.WriteHeader(http.StatusOK)
}

// setter methods below are only legal while the handle is still in SETUP.

func (r *Response) SetContentType(ct string) error {
	if err := r.requireSetup("SetContentType"); err != nil {
		return err
	}
	r.contentType = ct
	return nil
}

func (r *Response) SetLastModified(t time.Time) error {
	if err := r.requireSetup("SetLastModified"); err != nil {
		return err
	}
	r.lastModified = &t
	return nil
}

func (r *Response) SetDisplayUrl(u string) error {
	if err := r.requireSetup("SetDisplayUrl"); err != nil {
		return err
	}
	r.displayURL = u
	return nil
}

func (r *Response) SetMetadata(m *acl.Metadata) error {
	if err := r.requireSetup("SetMetadata"); err != nil {
		return err
	}
	r.metadata = m
	return nil
}

func (r *Response) SetAcl(a acl.Acl) error {
	if err := r.requireSetup("SetAcl"); err != nil {
		return err
	}
	r.docAcl = &a
	return nil
}

func (r *Response) AddAnchor(text, uri string) error {
	if err := r.requireSetup("AddAnchor"); err != nil {
		return err
	}
	r.anchors = append(r.anchors, anchor{text, uri})
	return nil
}

func (r *Response) SetNoIndex(v bool) error {
	if err := r.requireSetup("SetNoIndex"); err != nil {
		return err
	}
	r.noIndex = v
	return nil
}

func (r *Response) SetNoFollow(v bool) error {
	if err := r.requireSetup("SetNoFollow"); err != nil {
		return err
	}
	r.noFollow = v
	return nil
}

func (r *Response) SetNoArchive(v bool) error {
	if err := r.requireSetup("SetNoArchive"); err != nil {
		return err
	}
	r.noArchive = v
	return nil
}

func (r *Response) SetLock(v bool) error {
	if err := r.requireSetup("SetLock"); err != nil {
		return err
	}
	r.lock = v
	return nil
}

func (r *Response) SetCrawlOnce(v bool) error {
	if err := r.requireSetup("SetCrawlOnce"); err != nil {
		return err
	}
	r.crawlOnce = v
	return nil
}

// SetForcedTransmissionDecision overrides whether this document is
// transmitted regardless of the appliance's own crawl policy.
func (r *Response) SetForcedTransmissionDecision(v bool) error {
	if err := r.requireSetup("SetForcedTransmissionDecision"); err != nil {
		return err
	}
	r.forceTransmit = &v
	return nil
}

func (r *Response) SetParam(key, value string) error {
	if err := r.requireSetup("SetParam"); err != nil {
		return err
	}
	r.params[key] = value
	return nil
}

func (r *Response) Param(key string) (string, bool) {
	v, ok := r.params[key]
	return v, ok
}

// Finished reports whether the handle reached a terminal state (any state
// but SETUP). DocServer uses this to detect the "repository call returned
// without any state transition" invariant violation.
func (r *Response) Finished() bool { return r.state != StateSetup }
