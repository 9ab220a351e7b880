package sealed_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/connections/repofake"
	"github.com/jrsteele09/go-delegated-auth/connections/repotest"
	"github.com/jrsteele09/go-delegated-auth/connections/sealed"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealedRepo(t *testing.T) {
	repotest.Run(t, func(t *testing.T) connections.Repo {
		repo, err := sealed.New(repofake.NewFakeConnectionRepo(), newKey(t))
		require.NoError(t, err)
		return repo
	})
}

func TestSealedRepoEncryptsTokens(t *testing.T) {
	ctx := context.Background()
	inner := repofake.NewFakeConnectionRepo()
	repo, err := sealed.New(inner, newKey(t))
	require.NoError(t, err)

	require.NoError(t, repo.Write(ctx, connections.Key("s"), repotest.SampleRecord()))

	raw, err := inner.Read(ctx, connections.Key("s"))
	require.NoError(t, err)
	pc := raw.Connection(connections.KindPartnerCenter)
	require.True(t, strings.HasPrefix(pc.RefreshToken, "sealed:v1:"))
	require.NotContains(t, pc.AccessToken, "pc-access")
	require.NotEqual(t, "verifier-abc", raw.Pending.CodeVerifier)

	t.Run("bound to the store key", func(t *testing.T) {
		require.NoError(t, inner.Write(ctx, connections.Key("other"), raw))
		_, err := repo.Read(ctx, connections.Key("other"))
		require.True(t, errors.Is(err, errors.ErrStore))
	})

	t.Run("wrong key fails", func(t *testing.T) {
		other, err := sealed.New(inner, newKey(t))
		require.NoError(t, err)
		_, err = other.Read(ctx, connections.Key("s"))
		require.True(t, errors.Is(err, errors.ErrStore))
	})
}

func TestSealedRepoReadsPlaintext(t *testing.T) {
	ctx := context.Background()
	inner := repofake.NewFakeConnectionRepo()
	require.NoError(t, inner.Write(ctx, connections.Key("legacy"), repotest.SampleRecord()))

	repo, err := sealed.New(inner, newKey(t))
	require.NoError(t, err)
	got, err := repo.Read(ctx, connections.Key("legacy"))
	require.NoError(t, err)
	require.Equal(t, "pc-refresh", got.Connection(connections.KindPartnerCenter).RefreshToken)
}

func TestParseKey(t *testing.T) {
	key := newKey(t)

	got, err := sealed.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, key, got)

	got, err = sealed.ParseKey(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = sealed.ParseKey("c2hvcnQ=")
	require.True(t, errors.Is(err, errors.ErrConfiguration))
}
