package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"state mismatch", errors.ErrStateMismatch, http.StatusBadRequest},
		{"wrapped not connected", fmt.Errorf("customers: %w", errors.ErrNotConnected), http.StatusUnauthorized},
		{"spa token expired", errors.ErrSpaTokenExpired, http.StatusUnauthorized},
		{"timeout", errors.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{"exchange", errors.ErrTokenExchangeFailed, http.StatusBadGateway},
		{"method", errors.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{"configuration", errors.ErrConfiguration, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, errors.HTTPStatus(tt.err))
		})
	}
}

func TestWrapf(t *testing.T) {
	require.Nil(t, errors.Wrapf(nil, "context"))

	err := errors.Wrapf(errors.ErrStore, "write %s", "pc:session:1")
	require.True(t, errors.Is(err, errors.ErrStore))
	require.Equal(t, "write pc:session:1: token store error", err.Error())
}

func TestUserMessage(t *testing.T) {
	require.Contains(t, errors.UserMessage(errors.ErrNotConnected), "Connect")
	require.Contains(t, errors.UserMessage(errors.ErrSpaTokenExpired), "reconnect")
	require.Empty(t, errors.UserMessage(errors.ErrStore))
}
