// Package azureadtest provides a fake Azure AD token endpoint and token minting
// for tests.
package azureadtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

type reply struct {
	status int
	body   any
}

// Authority is an httptest server answering /{tenant}/oauth2/v2.0/token. By
// default every grant succeeds with a fresh MFA-bearing access token and a new
// refresh token; queued replies are served first.
type Authority struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
	queue    []reply
	issued   int
	delay    time.Duration
	now      func() time.Time
}

func NewAuthority(t *testing.T) *Authority {
	t.Helper()
	a := &Authority{now: time.Now}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Close)
	return a
}

// Reply queues a one-shot response.
func (a *Authority) Reply(status int, body any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue = append(a.queue, reply{status: status, body: body})
}

// ReplyAADSTS queues a 400 carrying an Azure AD error with the given AADSTS code.
func (a *Authority) ReplyAADSTS(code int, azureError string) {
	a.Reply(http.StatusBadRequest, ErrorBody(code, azureError))
}

// Delay makes every response wait d before answering.
func (a *Authority) Delay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
}

// Requests returns the forms received so far.
func (a *Authority) Requests() []url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]url.Values(nil), a.requests...)
}

func (a *Authority) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token") {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	a.requests = append(a.requests, r.PostForm)
	delay := a.delay
	var next *reply
	if len(a.queue) > 0 {
		next = &a.queue[0]
		a.queue = a.queue[1:]
	}
	a.issued++
	n := a.issued
	a.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if next != nil {
		w.WriteHeader(next.status)
		_ = json.NewEncoder(w).Encode(next.body)
		return
	}

	resp := map[string]any{
		"token_type":   "Bearer",
		"expires_in":   3599,
		"scope":        r.PostForm.Get("scope"),
		"access_token": MintToken(map[string]any{"exp": a.now().Add(time.Hour).Unix(), "amr": []string{"pwd", "mfa"}, "seq": n}),
	}
	if r.PostForm.Get("grant_type") != "client_credentials" {
		resp["refresh_token"] = fmt.Sprintf("refresh-%d", n)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// ErrorBody is an Azure AD style error document.
func ErrorBody(code int, azureError string) map[string]any {
	return map[string]any{
		"error":             azureError,
		"error_description": fmt.Sprintf("AADSTS%d: simulated failure.\r\nTrace ID: 00000000-0000-0000-0000-000000000000", code),
		"error_codes":       []int{code},
	}
}

// MintToken returns an HS256 JWT carrying claims. The signature is meaningless;
// the gateway never verifies it.
func MintToken(claims map[string]any) string {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims(claims)).SignedString([]byte("azureadtest"))
	if err != nil {
		panic(err)
	}
	return signed
}

// ExpiredToken mints a token that expired an hour ago.
func ExpiredToken() string {
	return MintToken(map[string]any{"exp": time.Now().Add(-time.Hour).Unix(), "amr": []string{"pwd"}})
}

// FreshToken mints a token valid for an hour.
func FreshToken() string {
	return MintToken(map[string]any{"exp": time.Now().Add(time.Hour).Unix(), "amr": []string{"pwd", "mfa"}})
}
