package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aras-services/gsa-adaptor/internal/pusher"
)

func newTestDashboard(t *testing.T) *Dashboard {
	t.Helper()
	journal := pusher.NewJournal(prometheus.NewRegistry())
	return New(nil, journal, []byte("test-secret"), nil)
}

// signedCookie mints a session entry and its matching signed cookie value,
// bypassing HandleLogin (which needs a live adminstore.Store) the same way a
// real login would.
func signedCookie(t *testing.T, d *Dashboard, sid string, expiresAt time.Time) *http.Cookie {
	t.Helper()
	d.mu.Lock()
	d.sessions[sid] = &session{username: "admin", xsrf: "xsrf-token", expiresAt: expiresAt}
	d.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(d.jwtSecret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return &http.Cookie{Name: sessionCookie, Value: signed}
}

func TestRequireSessionRejectsMissingCookie(t *testing.T) {
	d := newTestDashboard(t)
	called := false
	h := d.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("next handler should not run without a session cookie")
	}
}

func TestRequireSessionRejectsExpiredSession(t *testing.T) {
	d := newTestDashboard(t)
	cookie := signedCookie(t, d, "sess1", time.Now().Add(-time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	d.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run for an expired session")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireSessionAcceptsValidCookieAndPopulatesContext(t *testing.T) {
	d := newTestDashboard(t)
	cookie := signedCookie(t, d, "sess1", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	var gotSession *session
	d.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession, _ = r.Context().Value(sessionContextKey{}).(*session)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200", rec.Code)
	}
	if gotSession == nil || gotSession.username != "admin" {
		t.Fatalf("expected the session to be attached to the request context, got %+v", gotSession)
	}
}

func TestHandleRPCRejectsMissingOrWrongXsrf(t *testing.T) {
	d := newTestDashboard(t)
	cookie := signedCookie(t, d, "sess1", time.Now().Add(time.Hour))

	for name, xsrf := range map[string]string{"missing": "", "wrong": "not-the-token"} {
		t.Run(name, func(t *testing.T) {
			body := `{"method":"getStatus","xsrfToken":"` + xsrf + `"}`
			req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()

			d.RequireSession(http.HandlerFunc(d.HandleRPC)).ServeHTTP(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Errorf("got status %d, want %d", rec.Code, http.StatusForbidden)
			}
		})
	}
}

func TestHandleRPCGetStatusReturnsJournalSnapshot(t *testing.T) {
	d := newTestDashboard(t)
	d.journal.RecordPushed("doc1")
	cookie := signedCookie(t, d, "sess1", time.Now().Add(time.Hour))

	body := `{"method":"getStatus","xsrfToken":"xsrf-token"}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	d.RequireSession(http.HandlerFunc(d.HandleRPC)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"TotalPushed":1`) {
		t.Errorf("expected the journal snapshot in the response body, got %s", rec.Body.String())
	}
}

func TestHandleRPCRejectsUnknownMethod(t *testing.T) {
	d := newTestDashboard(t)
	cookie := signedCookie(t, d, "sess1", time.Now().Add(time.Hour))

	body := `{"method":"doSomethingElse","xsrfToken":"xsrf-token"}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	d.RequireSession(http.HandlerFunc(d.HandleRPC)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleRPCRejectsNonPost(t *testing.T) {
	d := newTestDashboard(t)
	req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	rec := httptest.NewRecorder()

	d.HandleRPC(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
