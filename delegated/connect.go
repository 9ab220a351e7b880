package delegated

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/jrsteele09/go-delegated-auth/azuread"
	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/config"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/metrics"
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
	"github.com/jrsteele09/go-delegated-auth/pkce"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// CallbackParams are the query parameters Azure AD redirects back with.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is either a stored connection or, when the app registration
// only allows browser redemption, the data the redemption page needs.
type CallbackResult struct {
	Kind              connections.Kind
	Connection        *connections.Connection
	MFAWarning        bool
	BrowserRedemption *BrowserRedemption
}

// BrowserRedemption carries what the browser needs to redeem the code itself.
type BrowserRedemption struct {
	Kind          connections.Kind
	TokenEndpoint string
	ClientID      string
	Code          string
	CodeVerifier  string
	RedirectURI   string
	Scope         string
	State         string
}

// BrowserTokens is what the redemption page posts back.
type BrowserTokens struct {
	State        string
	Kind         connections.Kind
	AccessToken  string
	RefreshToken string
}

// Connect starts an authorization code + PKCE flow for kind and returns the
// authorize URL. A flow already pending for the session is replaced.
func (m *Manager) Connect(ctx context.Context, sessionID string, kind connections.Kind, redirectURI string) (string, error) {
	if err := m.settings.validate(); err != nil {
		return "", err
	}
	scope, err := m.settings.scope(kind)
	if err != nil {
		return "", err
	}
	pair, err := pkce.CreatePair()
	if err != nil {
		return "", err
	}
	state, err := newState()
	if err != nil {
		return "", err
	}

	err = m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		if _, err := transition(ctx, kind, rec.StateOf(kind), connections.EventConnect); err != nil {
			return false, err
		}
		rec.Pending = &connections.Pending{Kind: kind, State: state, CodeVerifier: pair.Verifier}
		return true, nil
	})
	if err != nil {
		return "", err
	}

	cfg := oauth2.Config{
		ClientID:    m.settings.ClientID,
		Endpoint:    m.tokens.Endpoint(m.settings.TenantID),
		RedirectURL: redirectURI,
		Scopes:      utils.SplitScopes(scope),
	}
	opts := append(pair.AuthCodeOptions(),
		oauth2.SetAuthURLParam("response_mode", "query"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return cfg.AuthCodeURL(state, opts...), nil
}

// Callback completes the flow started by Connect.
func (m *Manager) Callback(ctx context.Context, sessionID string, params CallbackParams, redirectURI string) (*CallbackResult, error) {
	logger := zerolog.Ctx(ctx)

	if params.Error != "" {
		// Only a callback carrying the pending state may cancel the request.
		_ = m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
			if rec.Pending == nil || params.State == "" || !sameState(rec.Pending.State, params.State) {
				return false, nil
			}
			_, _ = transition(ctx, rec.Pending.Kind, connections.StatePendingAuthorization, connections.EventCallbackFailed)
			rec.Pending = nil
			return true, nil
		})
		return nil, errors.Wrapf(errors.ErrAuthorizationDenied, "%s: %s", params.Error, params.ErrorDescription)
	}

	var pending connections.Pending
	err := m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		if rec.Pending == nil {
			return false, errors.ErrNoPendingRequest
		}
		if params.State == "" || !sameState(rec.Pending.State, params.State) {
			_, _ = transition(ctx, rec.Pending.Kind, connections.StatePendingAuthorization, connections.EventCallbackFailed)
			rec.Pending = nil
			return true, errors.ErrStateMismatch
		}
		pending = *rec.Pending
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if params.Code == "" {
		_ = m.discardPending(ctx, sessionID)
		return nil, errors.Wrapf(errors.ErrBadRequest, "missing code")
	}
	if err := m.settings.validate(); err != nil {
		return nil, err
	}
	scope, err := m.settings.scope(pending.Kind)
	if err != nil {
		return nil, err
	}

	redemption := &BrowserRedemption{
		Kind:          pending.Kind,
		TokenEndpoint: m.tokens.Endpoint(m.settings.TenantID).TokenURL,
		ClientID:      m.settings.ClientID,
		Code:          params.Code,
		CodeVerifier:  pending.CodeVerifier,
		RedirectURI:   redirectURI,
		Scope:         scope,
		State:         pending.State,
	}
	if m.settings.ClientType == config.ClientTypeSPA {
		metrics.RecordFallback("browser_redemption")
		return &CallbackResult{Kind: pending.Kind, BrowserRedemption: redemption}, nil
	}

	req := azuread.AuthCodeRequest{
		Tenant:       m.settings.TenantID,
		ClientID:     m.settings.ClientID,
		ClientSecret: m.settings.ClientSecret,
		Code:         params.Code,
		RedirectURI:  redirectURI,
		CodeVerifier: pending.CodeVerifier,
		Scope:        scope,
	}
	isPublicClient := req.ClientSecret == ""
	tok, err := m.tokens.ExchangeAuthCode(ctx, req)
	if azuread.CodeOf(err) == azuread.CodePublicClient && req.ClientSecret != "" && m.settings.ClientType != config.ClientTypeConfidential {
		logger.Info().Str("kind", string(pending.Kind)).Msg("app registration is a public client, retrying without secret")
		metrics.RecordFallback("public_client")
		req.ClientSecret = ""
		isPublicClient = true
		tok, err = m.tokens.ExchangeAuthCode(ctx, req)
	}
	if azuread.CodeOf(err) == azuread.CodeSpaCrossOriginRedemption {
		logger.Info().Str("kind", string(pending.Kind)).Msg("app registration requires browser redemption")
		metrics.RecordFallback("browser_redemption")
		return &CallbackResult{Kind: pending.Kind, BrowserRedemption: redemption}, nil
	}
	if err != nil {
		_ = m.discardPending(ctx, sessionID)
		return nil, err
	}
	if tok.RefreshToken == "" {
		_ = m.discardPending(ctx, sessionID)
		return nil, fmt.Errorf("no refresh token issued, is offline_access in the %s scope: %w", pending.Kind, errors.ErrTokenExchangeFailed)
	}

	conn := newConnection(ctx, tok, isPublicClient)
	if err := m.storeConnection(ctx, sessionID, pending, conn); err != nil {
		return nil, err
	}
	return &CallbackResult{
		Kind:       pending.Kind,
		Connection: conn,
		MFAWarning: mfaWarning(pending.Kind, conn),
	}, nil
}

// StoreBrowserTokens persists tokens redeemed by the browser redemption page. The
// state is checked against the pending request again before anything is written.
func (m *Manager) StoreBrowserTokens(ctx context.Context, sessionID string, tokens BrowserTokens) (*connections.Connection, error) {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, errors.Wrapf(errors.ErrBadRequest, "accessToken and refreshToken are required")
	}
	tok := &azuread.TokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	conn := newConnection(ctx, tok, true)

	err := m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		p := rec.Pending
		if p == nil {
			return false, errors.ErrNoPendingRequest
		}
		if tokens.State == "" || !sameState(p.State, tokens.State) || (tokens.Kind != "" && tokens.Kind != p.Kind) {
			rec.Pending = nil
			return true, errors.ErrStateMismatch
		}
		if _, err := transition(ctx, p.Kind, rec.StateOf(p.Kind), connections.EventCallbackSucceeded); err != nil {
			return false, err
		}
		tokens.Kind = p.Kind
		rec.SetConnection(p.Kind, conn)
		rec.Pending = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("kind", string(tokens.Kind)).Msg("stored browser-redeemed tokens")
	return conn, nil
}

func (m *Manager) storeConnection(ctx context.Context, sessionID string, pending connections.Pending, conn *connections.Connection) error {
	return m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		// Another connect may have replaced the request while the code was redeemed.
		if rec.Pending == nil || !sameState(rec.Pending.State, pending.State) {
			return false, errors.Wrapf(errors.ErrStateMismatch, "authorization request was replaced")
		}
		if _, err := transition(ctx, pending.Kind, rec.StateOf(pending.Kind), connections.EventCallbackSucceeded); err != nil {
			return false, err
		}
		rec.SetConnection(pending.Kind, conn)
		rec.Pending = nil
		return true, nil
	})
}

func (m *Manager) discardPending(ctx context.Context, sessionID string) error {
	return m.update(ctx, sessionID, func(rec *connections.Record) (bool, error) {
		if rec.Pending == nil {
			return false, nil
		}
		_, _ = transition(ctx, rec.Pending.Kind, connections.StatePendingAuthorization, connections.EventCallbackFailed)
		rec.Pending = nil
		return true, nil
	})
}

func mfaWarning(kind connections.Kind, conn *connections.Connection) bool {
	return kind == connections.KindPartnerCenter && !azuread.Claims(conn.AccessTokenClaims).HasMFA()
}

func sameState(stored, got string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(got)) == 1
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
