package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-delegated-auth/azuread/azureadtest"
	"github.com/jrsteele09/go-delegated-auth/downstream"
	"github.com/jrsteele09/go-delegated-auth/internal/config"
	"github.com/jrsteele09/go-delegated-auth/server"
	"github.com/jrsteele09/go-delegated-auth/sessions"
	"github.com/stretchr/testify/require"
)

// upstream is a fake resource API that records what it was asked for.
type upstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	status   int
	body     string
}

func newUpstream(t *testing.T, tls bool) *upstream {
	t.Helper()
	u := &upstream{status: http.StatusOK}
	handler := http.HandlerFunc(u.serve)
	if tls {
		u.Server = httptest.NewTLSServer(handler)
	} else {
		u.Server = httptest.NewServer(handler)
	}
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r.Clone(context.Background()))
	status, body := u.status, u.body
	u.mu.Unlock()

	if body == "" {
		body = `{"path":"` + r.URL.Path + `"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (u *upstream) reply(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status, u.body = status, body
}

func (u *upstream) last(t *testing.T) *http.Request {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.requests, "upstream was not called")
	return u.requests[len(u.requests)-1]
}

func (u *upstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

type fixture struct {
	t             *testing.T
	authority     *azureadtest.Authority
	partnerCenter *upstream
	graph         *upstream
	arm           *upstream
	server        *server.Server
	cookie        string
}

func newFixture(t *testing.T, env ...string) *fixture {
	t.Helper()
	f := &fixture{
		t:             t,
		authority:     azureadtest.NewAuthority(t),
		partnerCenter: newUpstream(t, false),
		graph:         newUpstream(t, false),
		arm:           newUpstream(t, true),
	}

	t.Setenv("ENV", "TEST")
	t.Setenv("AZURE_TENANT_ID", "contoso")
	t.Setenv("AZURE_CLIENT_ID", "app-id")
	t.Setenv("AZURE_CLIENT_SECRET", "app-secret")
	t.Setenv("AZURE_CLIENT_TYPE", "auto")
	t.Setenv("AZURE_AUTHORITY_HOST", f.authority.URL)
	t.Setenv("PARTNER_CENTER_BASE_URL", f.partnerCenter.URL)
	t.Setenv("GRAPH_BASE_URL", f.graph.URL)
	t.Setenv("AZURE_MANAGEMENT_BASE_URL", f.arm.URL)
	t.Setenv("PARTNER_CENTER_TOKEN_STORE_KIND", "memory")
	t.Setenv("POST_CONNECT_REDIRECT", "/app")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}

	c, err := config.Load()
	require.NoError(t, err)
	deps, err := server.NewDependencies(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	// The ARM fake speaks TLS with a self-signed certificate.
	deps.ResourceManager, err = downstream.NewClient(downstream.APIResourceManager, f.arm.URL, 5*time.Second, downstream.WithHTTPClient(f.arm.Client()))
	require.NoError(t, err)
	deps.Subscriptions = downstream.NewSubscriptionLister(f.arm.URL, 5*time.Second, f.arm.Client())

	f.server, err = server.New(c, deps)
	require.NoError(t, err)
	return f
}

// do sends a request carrying the session cookie and keeps any cookie issued.
func (f *fixture) do(method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = strings.NewReader(string(raw))
	}
	r := httptest.NewRequest(method, target, reader)
	if f.cookie != "" {
		r.Header.Set("Cookie", sessions.CookieName+"="+f.cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)

	if id := sessions.ParseCookies(cookiePair(w.Header().Get("Set-Cookie")))[sessions.CookieName]; id != "" {
		f.cookie = id
	}
	return w
}

func cookiePair(setCookie string) string {
	pair, _, _ := strings.Cut(setCookie, ";")
	return pair
}

// connect runs the full connect and callback round trip for op.
func (f *fixture) connect(op string) *httptest.ResponseRecorder {
	f.t.Helper()
	state := f.startConnect(op)
	return f.do(http.MethodGet, "/api/partner-center?op=callback&code=auth-code&state="+url.QueryEscape(state), nil)
}

// startConnect begins a flow and returns the state Azure AD would echo back.
func (f *fixture) startConnect(op string) string {
	f.t.Helper()
	w := f.do(http.MethodGet, "/api/partner-center?op="+op, nil)
	require.Equal(f.t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(f.t, err)
	return loc.Query().Get("state")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
