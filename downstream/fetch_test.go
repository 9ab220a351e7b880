package downstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-delegated-auth/downstream"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, handler http.HandlerFunc) *downstream.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := downstream.NewClient(downstream.APIPartnerCenter, srv.URL+"/", time.Second)
	require.NoError(t, err)
	return c
}

func TestFetchWithToken(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			require.Equal(t, "application/json", r.Header.Get("Accept"))
			require.Equal(t, "/v1/customers", r.URL.Path)
			require.Equal(t, "size=5", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"totalCount":1,"items":[{"id":"c1"}]}`))
		})

		resp, err := c.FetchWithToken(context.Background(), "tok", "v1/customers?size=5")
		require.NoError(t, err)
		require.True(t, resp.OK())
		data := resp.Data.(map[string]any)
		require.EqualValues(t, 1, data["totalCount"])
	})

	t.Run("non json body", func(t *testing.T) {
		c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("<html>denied</html>"))
		})

		resp, err := c.FetchWithToken(context.Background(), "tok", "/v1/profiles/mpn")
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.Status)
		require.Equal(t, map[string]any{"raw": "<html>denied</html>"}, resp.Data)

		var upstreamErr *downstream.UpstreamError
		err = resp.AsError(c.API())
		require.True(t, errors.As(err, &upstreamErr))
		require.True(t, errors.Is(err, errors.ErrUpstreamAPI))
		require.Equal(t, http.StatusForbidden, upstreamErr.Status)
		require.Equal(t, "<html>denied</html>", upstreamErr.Debug)
	})

	t.Run("empty body", func(t *testing.T) {
		c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		resp, err := c.FetchWithToken(context.Background(), "tok", "/v1/ping")
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.Status)
		require.Nil(t, resp.Data)
		require.NoError(t, resp.AsError(c.API()))
	})

	t.Run("absolute url on same host", func(t *testing.T) {
		var srvURL string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"page":2}`))
		}))
		defer srv.Close()
		srvURL = srv.URL
		c, err := downstream.NewClient(downstream.APIGraph, srvURL, time.Second)
		require.NoError(t, err)

		resp, err := c.FetchWithToken(context.Background(), "tok", srvURL+"/v1.0/next?skip=10")
		require.NoError(t, err)
		require.Equal(t, map[string]any{"page": float64(2)}, resp.Data)
	})

	t.Run("foreign host rejected", func(t *testing.T) {
		c := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request must not be sent")
		})

		_, err := c.FetchWithToken(context.Background(), "tok", "https://evil.example.com/steal")
		require.ErrorIs(t, err, errors.ErrBadRequest)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		c, err := downstream.NewClient(downstream.APIPartnerCenter, srv.URL, 20*time.Millisecond)
		require.NoError(t, err)

		_, err = c.FetchWithToken(context.Background(), "tok", "/slow")
		require.ErrorIs(t, err, errors.ErrUpstreamTimeout)
	})
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := downstream.NewClient(downstream.APIGraph, "not a url", time.Second)
	require.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestDebugBody(t *testing.T) {
	require.Equal(t, `{"error":"nope"}`, downstream.DebugBody(map[string]any{"error": "nope"}))
	require.Equal(t, "plain", downstream.DebugBody(map[string]any{"raw": "plain"}))

	long := downstream.DebugBody(map[string]any{"raw": strings.Repeat("x", 5000)})
	require.Len(t, long, downstream.DebugBodyLimit)
}
