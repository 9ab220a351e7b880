// Package repotest holds the behaviour every connections.Repo backend must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/stretchr/testify/require"
)

// SampleRecord returns a record with a pending request and two connections.
func SampleRecord() *connections.Record {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := connections.NewRecord()
	rec.Pending = &connections.Pending{
		Kind:         connections.KindAzure,
		State:        "state-123",
		CodeVerifier: "verifier-abc",
	}
	rec.SetConnection(connections.KindPartnerCenter, &connections.Connection{
		Connected:         true,
		ConnectedAt:       at,
		RefreshToken:      "pc-refresh",
		AccessToken:       "pc-access",
		AccessTokenClaims: map[string]any{"amr": []any{"pwd", "mfa"}, "exp": float64(1740834000)},
		LastRefreshedAt:   at.Add(time.Hour),
	})
	rec.SetConnection(connections.KindGDAP, &connections.Connection{
		Connected:      true,
		ConnectedAt:    at,
		RefreshToken:   "gdap-refresh",
		AccessToken:    "gdap-access",
		IsPublicClient: true,
	})
	return rec
}

// Run exercises the Repo contract against a fresh backend from newRepo.
func Run(t *testing.T, newRepo func(t *testing.T) connections.Repo) {
	t.Helper()
	ctx := context.Background()

	t.Run("read miss returns nil", func(t *testing.T) {
		repo := newRepo(t)
		rec, err := repo.Read(ctx, connections.Key("missing"))
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("write then read", func(t *testing.T) {
		repo := newRepo(t)
		want := SampleRecord()
		require.NoError(t, repo.Write(ctx, connections.Key("s1"), want))

		got, err := repo.Read(ctx, connections.Key("s1"))
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("last write wins", func(t *testing.T) {
		repo := newRepo(t)
		key := connections.Key("s2")
		require.NoError(t, repo.Write(ctx, key, SampleRecord()))

		second := connections.NewRecord()
		second.SetConnection(connections.KindAzure, &connections.Connection{Connected: true, RefreshToken: "rotated"})
		require.NoError(t, repo.Write(ctx, key, second))

		got, err := repo.Read(ctx, key)
		require.NoError(t, err)
		require.Nil(t, got.Pending)
		require.Nil(t, got.Connection(connections.KindPartnerCenter))
		require.Equal(t, "rotated", got.Connection(connections.KindAzure).RefreshToken)
	})

	t.Run("keys are independent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Write(ctx, connections.Key("a"), SampleRecord()))
		require.NoError(t, repo.Write(ctx, connections.Key("b"), connections.NewRecord()))
		require.NoError(t, repo.Delete(ctx, connections.Key("b")))

		got, err := repo.Read(ctx, connections.Key("a"))
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		key := connections.Key("s3")
		require.NoError(t, repo.Write(ctx, key, SampleRecord()))
		require.NoError(t, repo.Delete(ctx, key))
		require.NoError(t, repo.Delete(ctx, key))

		got, err := repo.Read(ctx, key)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}
