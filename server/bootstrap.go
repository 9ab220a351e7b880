package server

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-delegated-auth/azuread"
	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/connections/filerepo"
	"github.com/jrsteele09/go-delegated-auth/connections/keyringrepo"
	"github.com/jrsteele09/go-delegated-auth/connections/kvrepo"
	"github.com/jrsteele09/go-delegated-auth/connections/redisrepo"
	"github.com/jrsteele09/go-delegated-auth/connections/repofake"
	"github.com/jrsteele09/go-delegated-auth/connections/sealed"
	"github.com/jrsteele09/go-delegated-auth/delegated"
	"github.com/jrsteele09/go-delegated-auth/delegated/locking"
	"github.com/jrsteele09/go-delegated-auth/downstream"
	"github.com/jrsteele09/go-delegated-auth/internal/config"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/rs/zerolog/log"
)

// Dependencies are the collaborators a Server is built from.
type Dependencies struct {
	Repo            connections.Repo
	Locker          locking.Locker
	Tokens          delegated.TokenClient
	PartnerCenter   *downstream.Client
	Graph           *downstream.Client
	ResourceManager *downstream.Client
	Subscriptions   *downstream.SubscriptionLister

	closers []func() error
}

// Close releases connections opened by NewDependencies.
func (d Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies wires the token store, lock, token client and downstream
// clients selected by configuration.
func NewDependencies(ctx context.Context, c config.Config) (Dependencies, error) {
	var deps Dependencies
	if err := deps.initialiseTokenStore(ctx, c); err != nil {
		return Dependencies{}, fmt.Errorf("failed to initialise the token store: %w", err)
	}

	timeout := c.GetUpstreamTimeout()
	deps.Tokens = azuread.NewClient(c.GetAuthorityHost(), timeout)

	var err error
	if deps.PartnerCenter, err = downstream.NewClient(downstream.APIPartnerCenter, c.GetPartnerCenterBaseURL(), timeout); err != nil {
		return Dependencies{}, err
	}
	if deps.Graph, err = downstream.NewClient(downstream.APIGraph, c.GetGraphBaseURL(), timeout); err != nil {
		return Dependencies{}, err
	}
	if deps.ResourceManager, err = downstream.NewClient(downstream.APIResourceManager, c.GetAzureManagementBaseURL(), timeout); err != nil {
		return Dependencies{}, err
	}
	deps.Subscriptions = downstream.NewSubscriptionLister(c.GetAzureManagementBaseURL(), timeout, nil)
	return deps, nil
}

func (d *Dependencies) initialiseTokenStore(ctx context.Context, c config.Config) error {
	kind := c.GetTokenStoreKind()
	switch kind {
	case config.StoreKindFile:
		d.Repo = filerepo.New(c.GetTokenStorePath())
		log.Warn().Str("path", c.GetTokenStorePath()).Msg("token store is a local file, single operator only")
	case config.StoreKindMemory:
		d.Repo = repofake.NewFakeConnectionRepo()
	case config.StoreKindKV:
		repo, err := kvrepo.New(c.GetKVRestURL(), c.GetKVRestToken())
		if err != nil {
			return err
		}
		d.Repo = repo
	case config.StoreKindRedis:
		client, err := redisrepo.Dial(ctx, c.GetRedisURL())
		if err != nil {
			return err
		}
		d.closers = append(d.closers, client.Close)
		d.Repo = redisrepo.New(client)
		d.Locker = locking.NewRedisLocker(client, c.GetLockTTL())
	case config.StoreKindKeyring:
		d.Repo = keyringrepo.New(keyringrepo.DefaultService)
	default:
		return errors.Wrapf(errors.ErrConfiguration, "unknown token store kind %q", kind)
	}

	if encoded := c.GetTokenEncryptionKey(); encoded != "" {
		key, err := sealed.ParseKey(encoded)
		if err != nil {
			return err
		}
		repo, err := sealed.New(d.Repo, key)
		if err != nil {
			return err
		}
		d.Repo = repo
	}
	log.Info().Str("kind", string(kind)).Bool("encrypted", c.GetTokenEncryptionKey() != "").Msg("token store ready")
	return nil
}
