// Package delegated drives the delegated OAuth lifecycle for each session and
// connection kind: connect, callback, browser redemption, refresh and disconnect.
package delegated

import (
	"context"
	"time"

	"github.com/jrsteele09/go-delegated-auth/azuread"
	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/delegated/locking"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenClient is the Azure AD surface the manager needs.
type TokenClient interface {
	Endpoint(tenant string) oauth2.Endpoint
	ExchangeAuthCode(ctx context.Context, req azuread.AuthCodeRequest) (*azuread.TokenResponse, error)
	RefreshUserToken(ctx context.Context, req azuread.RefreshRequest) (*azuread.TokenResponse, error)
	GetToken(ctx context.Context, req azuread.ClientCredentialsRequest) (*azuread.TokenResponse, error)
}

type Manager struct {
	repo     connections.Repo
	tokens   TokenClient
	locker   locking.Locker
	settings Settings
	flight   singleflight.Group
}

func NewManager(repo connections.Repo, tokens TokenClient, locker locking.Locker, settings Settings) *Manager {
	if locker == nil {
		locker = locking.NewKeyedMutex()
	}
	return &Manager{
		repo:     repo,
		tokens:   tokens,
		locker:   locker,
		settings: settings,
	}
}

// Settings returns the app registration the manager was built with.
func (m *Manager) Settings() Settings {
	return m.settings
}

// update runs fn against the session record under the session lock. fn returns
// whether the record should be written back; an empty record is deleted.
func (m *Manager) update(ctx context.Context, sessionID string, fn func(rec *connections.Record) (bool, error)) error {
	key := connections.Key(sessionID)
	unlock, err := m.locker.Lock(ctx, key)
	if err != nil {
		return errors.Wrapf(errors.ErrStore, "lock session: %v", err)
	}
	defer unlock()

	rec, err := m.repo.Read(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = connections.NewRecord()
	}

	save, fnErr := fn(rec)
	if save {
		if rec.Empty() {
			err = m.repo.Delete(ctx, key)
		} else {
			err = m.repo.Write(ctx, key, rec)
		}
		if err != nil {
			return err
		}
	}
	return fnErr
}

// transition validates a lifecycle step and logs rejected ones.
func transition(ctx context.Context, kind connections.Kind, from connections.State, ev connections.Event) (connections.State, error) {
	to, err := connections.Transition(from, ev)
	logger := zerolog.Ctx(ctx)
	if err != nil {
		logger.Warn().Str("kind", string(kind)).Str("from", from.String()).Str("event", string(ev)).Msg("rejected connection transition")
		return from, err
	}
	logger.Debug().Str("kind", string(kind)).Str("from", from.String()).Str("to", to.String()).Msg("connection transition")
	return to, nil
}

// newConnection builds the stored form of a freshly issued token pair.
func newConnection(ctx context.Context, tok *azuread.TokenResponse, isPublicClient bool) *connections.Connection {
	now := NowTimeFunc()
	return &connections.Connection{
		Connected:         true,
		ConnectedAt:       now,
		RefreshToken:      tok.RefreshToken,
		AccessToken:       tok.AccessToken,
		AccessTokenClaims: decodeClaims(ctx, tok.AccessToken),
		IsPublicClient:    isPublicClient,
	}
}

func decodeClaims(ctx context.Context, accessToken string) map[string]any {
	claims, err := azuread.DecodeClaims(accessToken)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("access token is not a readable JWT")
		return nil
	}
	return claims
}
