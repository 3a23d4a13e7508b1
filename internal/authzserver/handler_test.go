package authzserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/idcodec"
)

type fakeRetriever struct {
	acls map[string]acl.Acl
}

func (f *fakeRetriever) GetAcls(ctx context.Context, ids []string) (map[string]acl.Acl, error) {
	out := make(map[string]acl.Acl, len(ids))
	for _, id := range ids {
		if a, ok := f.acls[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func newTestHandler(t *testing.T, acls map[string]acl.Acl) (*Handler, *idcodec.Codec) {
	t.Helper()
	codec, err := idcodec.New("http://gsa.example.com:19900/doc", false)
	if err != nil {
		t.Fatalf("idcodec.New: %v", err)
	}
	batch := acl.NewBatch(&fakeRetriever{acls: acls}, nil)
	return New(codec, batch, nil), codec
}

func TestServeHTTPRejectsNonPost(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	r := httptest.NewRequest(http.MethodGet, "/authz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", w.Code)
	}
}

func TestServeHTTPRejectsMissingSubject(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	body := `<soap:Envelope><soap:Body><BatchAuthorizationQuery>
		<AuthorizationQuery><Resource>http://gsa.example.com:19900/doc/a</Resource></AuthorizationQuery>
	</BatchAuthorizationQuery></soap:Body></soap:Envelope>`
	r := httptest.NewRequest(http.MethodPost, "/authz", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d, want 400", w.Code)
	}
}

func TestServeHTTPEvaluatesBatchAndWritesDecisions(t *testing.T) {
	alice := acl.NewUser("alice")
	permitAcl := acl.NewBuilder(false).PermitUser(alice).Build()
	_, codec := newTestHandler(t, nil)
	uri, err := codec.Encode("allowed.txt")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	deniedURI, err := codec.Encode("denied.txt")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	h, _ := newTestHandler(t, map[string]acl.Acl{
		"allowed.txt": permitAcl,
		"denied.txt":  acl.NewBuilder(false).DenyUser(alice).Build(),
	})

	body := `<soap:Envelope><soap:Body><BatchAuthorizationQuery>
		<Subject><User>alice</User></Subject>
		<AuthorizationQuery>
			<Resource>` + uri + `</Resource>
			<Resource>` + deniedURI + `</Resource>
		</AuthorizationQuery>
	</BatchAuthorizationQuery></soap:Body></soap:Envelope>`
	r := httptest.NewRequest(http.MethodPost, "/authz", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", w.Code, w.Body.String())
	}
	out := w.Body.String()
	if !strings.Contains(out, `Decision="Permit"`) {
		t.Errorf("expected a Permit decision, got:\n%s", out)
	}
	if !strings.Contains(out, `Decision="Deny"`) {
		t.Errorf("expected a Deny decision, got:\n%s", out)
	}
}
