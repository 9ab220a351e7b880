package filerepo_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/connections/filerepo"
	"github.com/jrsteele09/go-delegated-auth/connections/repotest"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestFileRepo(t *testing.T) {
	repotest.Run(t, func(t *testing.T) connections.Repo {
		return filerepo.New(filepath.Join(t.TempDir(), "nested", ".partner-center-token.json"))
	})
}

func TestFileRepoLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	repo := filerepo.New(path)
	key := connections.Key("abc")

	require.NoError(t, repo.Write(context.Background(), key, repotest.SampleRecord()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	rec := doc[key]
	require.Equal(t, "pc-refresh", rec["refreshToken"])
	require.Equal(t, "gdap-refresh", rec["gdapRefreshToken"])
	require.Equal(t, true, rec["gdapIsPublicClient"])
	require.Equal(t, "azure", rec["pendingKind"])
	require.Equal(t, "state-123", rec["pendingState"])
	require.Equal(t, "verifier-abc", rec["pendingCodeVerifier"])
	require.NotContains(t, rec, "azureRefreshToken")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileRepoCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := filerepo.New(path).Read(context.Background(), connections.Key("x"))
	require.True(t, errors.Is(err, errors.ErrStore))
}

func TestFileRepoLegacyFlatFile(t *testing.T) {
	const legacy = `{"connected":true,"connectedAt":"2024-11-02T08:30:00.000Z","refreshToken":"r","accessToken":"a","isPublicClient":false,"pendingKind":"gdap","pendingState":"s","pendingCodeVerifier":"v"}`
	ctx := context.Background()

	seed := func(t *testing.T) string {
		path := filepath.Join(t.TempDir(), ".partner-center-token.json")
		require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))
		return path
	}

	t.Run("read", func(t *testing.T) {
		rec, err := filerepo.New(seed(t)).Read(ctx, connections.Key("any"))
		require.NoError(t, err)
		require.NotNil(t, rec)
		c := rec.Connection(connections.KindPartnerCenter)
		require.NotNil(t, c)
		require.True(t, c.Connected)
		require.Equal(t, "r", c.RefreshToken)
		require.Equal(t, time.Date(2024, 11, 2, 8, 30, 0, 0, time.UTC), c.ConnectedAt)
		require.NotNil(t, rec.Pending)
		require.Equal(t, connections.KindGDAP, rec.Pending.Kind)
		require.Equal(t, "v", rec.Pending.CodeVerifier)
	})

	t.Run("write migrates to keyed layout", func(t *testing.T) {
		path := seed(t)
		repo := filerepo.New(path)
		key := connections.Key("abc")

		rec, err := repo.Read(ctx, key)
		require.NoError(t, err)
		rec.Pending = nil
		require.NoError(t, repo.Write(ctx, key, rec))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Len(t, doc, 1)
		require.Equal(t, "r", doc[key]["refreshToken"])

		other, err := repo.Read(ctx, connections.Key("other"))
		require.NoError(t, err)
		require.Nil(t, other)
	})

	t.Run("delete clears it", func(t *testing.T) {
		repo := filerepo.New(seed(t))
		require.NoError(t, repo.Delete(ctx, connections.Key("abc")))

		rec, err := repo.Read(ctx, connections.Key("abc"))
		require.NoError(t, err)
		require.Nil(t, rec)
	})
}
