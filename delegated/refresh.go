package delegated

import (
	"context"
	"time"

	"github.com/jrsteele09/go-delegated-auth/azuread"
	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/metrics"
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
	"github.com/rs/zerolog"
)

// FreshToken is a bearer token ready for a downstream call.
type FreshToken struct {
	AccessToken string
	Claims      azuread.Claims
	// Refreshed is false when a still-valid public client token was reused.
	Refreshed  bool
	MFAWarning bool
}

// EnsureFreshToken returns a usable access token for the session and kind.
//
// Public client connections are never refreshed server side: an unexpired token
// is reused and an expired one yields ErrSpaTokenExpired. Confidential
// connections are refreshed and both rotated tokens persisted. Concurrent calls
// for the same session and kind share one refresh.
func (m *Manager) EnsureFreshToken(ctx context.Context, sessionID string, kind connections.Kind) (*FreshToken, error) {
	v, err, shared := m.flight.Do(sessionID+"|"+string(kind), func() (any, error) {
		return m.ensureFreshToken(context.WithoutCancel(ctx), sessionID, kind)
	})
	if shared {
		zerolog.Ctx(ctx).Debug().Str("kind", string(kind)).Msg("joined in-flight token refresh")
	}
	if err != nil {
		return nil, err
	}
	return v.(*FreshToken), nil
}

func (m *Manager) ensureFreshToken(ctx context.Context, sessionID string, kind connections.Kind) (*FreshToken, error) {
	var fresh *FreshToken
	err := m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		conn := rec.Connection(kind)
		if !conn.Usable() {
			return false, errors.Wrapf(errors.ErrNotConnected, "%s", kind)
		}

		if conn.IsPublicClient {
			claims := azuread.Claims(conn.AccessTokenClaims)
			if claims == nil {
				claims = decodeClaims(ctx, conn.AccessToken)
			}
			if conn.AccessToken == "" || claims.Expired(NowTimeFunc(), m.settings.ExpirySkew) {
				return false, errors.Wrapf(errors.ErrSpaTokenExpired, "%s", kind)
			}
			fresh = &FreshToken{AccessToken: conn.AccessToken, Claims: claims, MFAWarning: mfaWarning(kind, conn)}
			return false, nil
		}

		if err := m.settings.validate(); err != nil {
			return false, err
		}
		scope, err := m.settings.scope(kind)
		if err != nil {
			return false, err
		}
		if _, err := transition(ctx, kind, connections.StateConnected, connections.EventRefreshStarted); err != nil {
			return false, err
		}

		tok, err := m.tokens.RefreshUserToken(ctx, azuread.RefreshRequest{
			Tenant:       m.settings.TenantID,
			ClientID:     m.settings.ClientID,
			ClientSecret: m.settings.ClientSecret,
			RefreshToken: conn.RefreshToken,
			Scope:        scope,
		})
		metrics.RecordRefresh(string(kind), err)
		if err != nil {
			_, _ = transition(ctx, kind, connections.StateRefreshing, connections.EventRefreshFailed)
			if azuread.CodeOf(err) == azuread.CodeInvalidGrant {
				zerolog.Ctx(ctx).Warn().Str("kind", string(kind)).Msg("refresh token rejected, clearing connection")
				rec.ClearConnection(kind)
				return true, err
			}
			return false, err
		}
		_, _ = transition(ctx, kind, connections.StateRefreshing, connections.EventRefreshSucceeded)

		conn.AccessToken = tok.AccessToken
		if tok.RefreshToken != "" {
			conn.RefreshToken = tok.RefreshToken
		}
		conn.AccessTokenClaims = decodeClaims(ctx, tok.AccessToken)
		conn.LastRefreshedAt = NowTimeFunc()
		fresh = &FreshToken{
			AccessToken: conn.AccessToken,
			Claims:      conn.AccessTokenClaims,
			Refreshed:   true,
			MFAWarning:  mfaWarning(kind, conn),
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// AppOnlyToken runs the client credentials grant. Empty request fields fall back
// to the configured app registration.
func (m *Manager) AppOnlyToken(ctx context.Context, req azuread.ClientCredentialsRequest) (*azuread.TokenResponse, error) {
	if req.Tenant == "" {
		req.Tenant = m.settings.TenantID
	}
	if req.ClientID == "" {
		req.ClientID = m.settings.ClientID
	}
	if req.ClientSecret == "" {
		req.ClientSecret = m.settings.ClientSecret
	}
	if req.Scope == "" {
		req.Scope = m.settings.AppScope
	}
	if req.Tenant == "" || req.ClientID == "" || req.ClientSecret == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "client credentials need tenant, client id and secret")
	}
	return m.tokens.GetToken(ctx, req)
}

// ConnectionStatus is the externally visible state of one connection.
type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	State           string     `json:"state"`
	IsPublicClient  bool       `json:"isPublicClient"`
	ConnectedAt     *time.Time `json:"connectedAt,omitempty"`
	LastRefreshedAt *time.Time `json:"lastRefreshedAt,omitempty"`
	ExpiresAt       *time.Time `json:"accessTokenExpiresAt,omitempty"`
	MFA             bool       `json:"mfa"`
}

// Status reports every connection kind for the session.
func (m *Manager) Status(ctx context.Context, sessionID string) (map[connections.Kind]ConnectionStatus, error) {
	rec, err := m.repo.Read(ctx, connections.Key(sessionID))
	if err != nil {
		return nil, err
	}
	out := make(map[connections.Kind]ConnectionStatus, len(connections.Kinds()))
	for _, k := range connections.Kinds() {
		st := ConnectionStatus{State: rec.StateOf(k).String()}
		if c := rec.Connection(k); c.Usable() {
			claims := azuread.Claims(c.AccessTokenClaims)
			st.Connected = true
			st.IsPublicClient = c.IsPublicClient
			st.ConnectedAt = timePtr(c.ConnectedAt)
			st.LastRefreshedAt = timePtr(c.LastRefreshedAt)
			if exp, ok := claims.ExpiresAt(); ok {
				st.ExpiresAt = utils.Ptr(exp)
			}
			st.MFA = claims.HasMFA()
		}
		out[k] = st
	}
	return out, nil
}

// Disconnect forgets the given kinds, or everything including any pending
// request when no kind is given. Disconnecting twice is not an error.
func (m *Manager) Disconnect(ctx context.Context, sessionID string, kinds ...connections.Kind) error {
	if len(kinds) == 0 {
		kinds = connections.Kinds()
	}
	return m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		changed := false
		for _, k := range kinds {
			if _, err := transition(ctx, k, rec.StateOf(k), connections.EventDisconnect); err != nil {
				return false, err
			}
			if rec.Connection(k) != nil {
				rec.ClearConnection(k)
				changed = true
			}
			if rec.Pending != nil && rec.Pending.Kind == k {
				rec.Pending = nil
				changed = true
			}
		}
		return changed, nil
	})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
