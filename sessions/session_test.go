package sessions_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-delegated-auth/sessions"
	"github.com/stretchr/testify/require"
)

func TestEnsureSessionID(t *testing.T) {
	t.Run("issues a new id without a cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/partner-center?op=status", nil)
		w := httptest.NewRecorder()

		id, err := sessions.EnsureSessionID(w, r)
		require.NoError(t, err)
		require.Len(t, id, 48)
		require.True(t, sessions.ValidID(id))

		setCookie := w.Header().Get("Set-Cookie")
		require.True(t, strings.HasPrefix(setCookie, "pc_session="+id))
		require.Contains(t, setCookie, "Path=/")
		require.Contains(t, setCookie, "Max-Age=2592000")
		require.Contains(t, setCookie, "HttpOnly")
		require.Contains(t, setCookie, "SameSite=Lax")
		require.NotContains(t, setCookie, "Secure")
	})

	t.Run("returns the same id for the same cookie", func(t *testing.T) {
		existing, err := sessions.NewID()
		require.NoError(t, err)

		for range 2 {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Cookie", "theme=dark; pc_session="+existing)
			w := httptest.NewRecorder()

			id, err := sessions.EnsureSessionID(w, r)
			require.NoError(t, err)
			require.Equal(t, existing, id)
			require.Empty(t, w.Header().Get("Set-Cookie"))
		}
	})

	t.Run("replaces a malformed id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Cookie", "pc_session=../../etc/passwd")
		w := httptest.NewRecorder()

		id, err := sessions.EnsureSessionID(w, r)
		require.NoError(t, err)
		require.True(t, sessions.ValidID(id))
		require.NotEmpty(t, w.Header().Get("Set-Cookie"))
	})

	t.Run("secure behind https proxy", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()

		_, err := sessions.EnsureSessionID(w, r)
		require.NoError(t, err)
		require.Contains(t, w.Header().Get("Set-Cookie"), "Secure")
	})

	t.Run("configured lifetime", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		_, err := sessions.EnsureSessionIDFor(w, r, time.Hour)
		require.NoError(t, err)
		require.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=3600")
	})
}

func TestIsSecure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.False(t, sessions.IsSecure(r))

	r.TLS = &tls.ConnectionState{}
	require.True(t, sessions.IsSecure(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	require.True(t, sessions.IsSecure(r))
}

func TestCookieRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		"with space and ; semicolon",
		"unicode ✓ ünïcode",
		`quotes "and" \backslash`,
		"a=b&c=d%20",
		"",
	}
	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			setCookie := sessions.CookieString("probe", v, sessions.CookieOptions{Path: "/"})
			pair, _, _ := strings.Cut(setCookie, ";")

			parsed := sessions.ParseCookies("other=1; " + pair)
			require.Equal(t, v, parsed["probe"])
			require.Equal(t, "1", parsed["other"])
		})
	}
}

func TestParseCookies(t *testing.T) {
	parsed := sessions.ParseCookies(`a=1; b="quoted"; bad; =nope; a=2; c=%zz`)
	require.Equal(t, map[string]string{"a": "1", "b": "quoted", "c": "%zz"}, parsed)
	require.Empty(t, sessions.ParseCookies(""))
}
