// Package sessions issues and reads the browser session cookie that scopes stored
// connections to one browser.
package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// CookieName carries the session id.
	CookieName = "pc_session"
	// MaxAge is the cookie lifetime. Sessions never expire server side.
	MaxAge = 30 * 24 * time.Hour

	idBytes = 24
)

// NewID returns a random 48 character hex session id.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("sessions: read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	if len(id) != idBytes*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil && strings.ToLower(id) == id
}

// FromRequest returns the session id carried by r, or "" when absent or malformed.
func FromRequest(r *http.Request) string {
	id := ParseCookies(r.Header.Get("Cookie"))[CookieName]
	if !ValidID(id) {
		return ""
	}
	return id
}

// EnsureSessionID returns the request's session id, issuing a new one and setting
// the cookie on w when the request has none.
func EnsureSessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	return EnsureSessionIDFor(w, r, MaxAge)
}

// EnsureSessionIDFor is EnsureSessionID with a configurable cookie lifetime.
func EnsureSessionIDFor(w http.ResponseWriter, r *http.Request, maxAge time.Duration) (string, error) {
	if id := FromRequest(r); id != "" {
		return id, nil
	}
	id, err := NewID()
	if err != nil {
		return "", err
	}
	w.Header().Add("Set-Cookie", CookieString(CookieName, id, CookieOptions{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   IsSecure(r),
	}))
	return id, nil
}

// IsSecure reports whether r reached us over HTTPS, directly or behind a proxy.
func IsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
