/*
auth.go - Participant tokens and request authentication

PURPOSE:
  Identifies the caller of every session-scoped route. A participant is
  issued a signed JWT when they create or join a session; the token names
  the session, the participant and whether they are the manager.

CLAIMS:
  sub - participant token
  sid - session id
  mgr - manager flag

MIDDLEWARE:
  Authenticate:   Requires "Authorization: Bearer <jwt>" and a matching {id}
  RequireManager: 403 unless the caller is the session manager

SEE ALSO:
  - server.go: Which routes are wrapped
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/bankroll/bankroll"
)

// Claims is the JWT payload for a session participant.
type Claims struct {
	SessionID string `json:"sid"`
	Manager   bool   `json:"mgr,omitempty"`
	jwt.RegisteredClaims
}

// Caller is the authenticated participant behind a request.
type Caller struct {
	Session bankroll.SessionID
	Token   bankroll.Token
	Manager bool
}

type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for a participant.
func (a *Auth) Issue(p *bankroll.Participant) (string, error) {
	now := a.now()
	claims := Claims{
		SessionID: string(p.SessionID),
		Manager:   p.Manager,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.Token),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse verifies a token and returns its caller.
func (a *Auth) Parse(tokenString string) (*Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, errors.New("token is missing subject or session")
	}
	return &Caller{
		Session: bankroll.SessionID(claims.SessionID),
		Token:   bankroll.Token(claims.Subject),
		Manager: claims.Manager,
	}, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type callerKey struct{}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(*Caller)
	return c, ok
}

func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// Authenticate requires a valid bearer token. When the route has an {id}
// parameter, the token must belong to that session.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required", nil)
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			writeError(w, http.StatusUnauthorized, "Bearer token required", nil)
			return
		}

		caller, err := a.Parse(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		if id := chi.URLParam(r, "id"); id != "" && bankroll.SessionID(id) != caller.Session {
			writeError(w, http.StatusForbidden, "Token is for another session", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireManager rejects callers who are not the session manager.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := CallerFrom(r.Context())
		if !ok || !c.Manager {
			writeError(w, http.StatusForbidden, "Manager only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
