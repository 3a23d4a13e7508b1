// Package authzserver implements the on-demand batch authorization
// endpoint: the appliance posts a SAML-like XML request carrying an
// identity and a list of document URIs, and receives back one decision per
// identifier using internal/acl's evaluator.
package authzserver

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/idcodec"
)

// authzRequest is the fixed, small shape of the appliance's batch-authz
// request body: a subject plus a flat list of resources to authorize.
// There is no general SAML library in play here (the wire shape is not
// extensible SAML federation, just this one element tree), so this is
// parsed with stdlib encoding/xml rather than a SAML dependency.
type authzRequest struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		BatchRequest struct {
			Subject authzSubject `xml:"Subject"`
			Items   []authzItem  `xml:"AuthorizationQuery>Resource"`
		} `xml:"BatchAuthorizationQuery"`
	} `xml:"Body"`
}

// authzSubject carries the caller's identity: the user's raw principal name
// and its group memberships, each optionally namespaced.
type authzSubject struct {
	User   authzPrincipal   `xml:"User"`
	Groups []authzPrincipal `xml:"Groups>Group"`
}

type authzPrincipal struct {
	Name      string `xml:",chardata"`
	Namespace string `xml:"namespace,attr"`
}

func (p authzPrincipal) toPrincipal(isGroup bool) acl.Principal {
	ns := p.Namespace
	if ns == "" {
		ns = acl.DefaultNamespace
	}
	return acl.Principal{IsGroup: isGroup, Name: p.Name, Namespace: ns}
}

type authzItem struct {
	URI string `xml:",chardata"`
}

// Handler serves POST /authz.
type Handler struct {
	codec  *idcodec.Codec
	batch  *acl.Batch
	logger *zap.Logger
}

// New builds a Handler. batch evaluates ACL chains via a repository-backed
// acl.BatchRetriever.
func New(codec *idcodec.Codec, batch *acl.Batch, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{codec: codec, batch: batch, logger: logger}
}

// ServeHTTP decodes the request body, resolves each resource URI to a
// DocumentId, evaluates authorization for the caller's identity, and writes
// back one decision line per resource.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req authzRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		h.logger.Debug("authzserver: malformed request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	subject := req.Body.BatchRequest.Subject
	if subject.User.Name == "" {
		h.logger.Debug("authzserver: request carries no subject")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	identity := acl.Identity{User: subject.User.toPrincipal(false)}
	for _, g := range subject.Groups {
		identity.Groups = append(identity.Groups, g.toPrincipal(true))
	}

	ids := make([]string, 0, len(req.Body.BatchRequest.Items))
	idForURI := make(map[string]string, len(req.Body.BatchRequest.Items))
	for _, item := range req.Body.BatchRequest.Items {
		docID, err := h.codec.Decode(item.URI)
		if err != nil {
			continue
		}
		ids = append(ids, docID)
		idForURI[item.URI] = docID
	}

	decisions, err := h.batch.Evaluate(context.Background(), identity, ids)
	if err != nil {
		h.logger.Error("authzserver: batch evaluation failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	writeResponse(w, req.Body.BatchRequest.Items, decisions, idForURI)
}

func writeResponse(w io.Writer, items []authzItem, decisions map[string]acl.Status, idForURI map[string]string) {
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	io.WriteString(w, `<soap:Envelope><soap:Body><BatchAuthorizationResponse>`+"\n")
	for _, item := range items {
		status := decisions[idForURI[item.URI]]
		decision := "Indeterminate"
		switch status {
		case acl.Permit:
			decision = "Permit"
		case acl.Deny:
			decision = "Deny"
		}
		io.WriteString(w, `  <Resource Decision="`+decision+`">`+xmlEscape(item.URI)+`</Resource>`+"\n")
	}
	io.WriteString(w, `</BatchAuthorizationResponse></soap:Body></soap:Envelope>`)
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
