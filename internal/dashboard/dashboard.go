// Package dashboard implements the core touch-points of the operator
// dashboard the spec keeps in scope: the process-wide admin session map and
// the /rpc JSON-RPC endpoint guarded by an XSRF-token-per-session. The
// static asset bundle and SAML login UI are explicitly out of scope (spec.md
// §1) and are not implemented here.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/adminstore"
	"github.com/aras-services/gsa-adaptor/internal/pusher"
)

// session is one logged-in administrator's dashboard session: a session id
// cookie value and the XSRF token that must accompany every /rpc call.
type session struct {
	username  string
	xsrf      string
	expiresAt time.Time
}

// Dashboard serves the admin login and /rpc JSON-RPC endpoint. The session
// map is process-wide mutable state per spec.md §5/§9: it does not survive a
// restart, matching the non-goal that the core persists no state across
// restarts beyond the admin accounts themselves.
type Dashboard struct {
	accounts  *adminstore.Store
	journal   *pusher.Journal
	jwtSecret []byte
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session // sessionID -> session
}

// New builds a Dashboard. jwtSecret signs the session cookie.
func New(accounts *adminstore.Store, journal *pusher.Journal, jwtSecret []byte, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		accounts:  accounts,
		journal:   journal,
		jwtSecret: jwtSecret,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

const sessionCookie = "gsa_dashboard_session"

// sessionClaims is the JWT payload carried in the session cookie; the
// session map itself is the source of truth for XSRF validation, the cookie
// just identifies which session entry to consult.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// HandleLogin verifies credentials against adminstore, mints a session, and
// sets the signed session cookie. The XSRF token is returned in the JSON
// body for the dashboard's JS to stash and echo back on /rpc calls.
func (d *Dashboard) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	acc, err := d.accounts.Verify(ctx, body.Username, body.Password)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	sid := uuid.NewString()
	xsrf := uuid.NewString()
	d.mu.Lock()
	d.sessions[sid] = &session{username: acc.Username, xsrf: xsrf, expiresAt: time.Now().Add(12 * time.Hour)}
	d.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
		},
	})
	signed, err := token.SignedString(d.jwtSecret)
	if err != nil {
		d.logger.Error("dashboard: failed to sign session token", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name: sessionCookie, Value: signed, Path: "/", HttpOnly: true, MaxAge: 12 * 3600,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"xsrfToken": xsrf})
}

// RequireSession is chi-style middleware gating dashboard routes (other than
// static assets and login) on a valid session cookie.
func (d *Dashboard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := d.sessionFromRequest(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type sessionContextKey struct{}

func (d *Dashboard) sessionFromRequest(r *http.Request) (*session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	var claims sessionClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		return d.jwtSecret, nil
	})
	if err != nil {
		return nil, false
	}
	d.mu.RLock()
	sess, ok := d.sessions[claims.SessionID]
	d.mu.RUnlock()
	if !ok || time.Now().After(sess.expiresAt) {
		return nil, false
	}
	return sess, true
}

// rpcRequest is the shape of every POST /rpc call: a method name, params,
// and the XSRF token minted at login.
type rpcRequest struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	XsrfToken string          `json:"xsrfToken"`
}

// HandleRPC dispatches POST /rpc, a session-guarded, XSRF-checked JSON-RPC
// endpoint for dashboard actions (status, force a push, etc).
func (d *Dashboard) HandleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, ok := r.Context().Value(sessionContextKey{}).(*session)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.XsrfToken == "" || req.XsrfToken != sess.xsrf {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	switch req.Method {
	case "getStatus":
		d.writeJSON(w, d.journal.Snapshot())
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (d *Dashboard) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.logger.Error("dashboard: failed to encode RPC response", zap.Error(err))
	}
}
