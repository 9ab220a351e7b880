package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/jrsteele09/go-delegated-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", "")
	t.Setenv("AZURE_CLIENT_ID", "")
	t.Setenv("PARTNER_CENTER_DEV_PORT", "")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":4000", c.GetPort())
	require.Equal(t, config.ClientTypeAuto, c.GetClientType())
	require.Equal(t, "https://login.microsoftonline.com", c.GetAuthorityHost())
	require.Equal(t, "https://api.partnercenter.microsoft.com", c.GetPartnerCenterBaseURL())
	require.Equal(t, config.StoreKindFile, c.GetTokenStoreKind())
	require.Equal(t, 30*24*time.Hour, c.GetSessionMaxAge())
	require.Equal(t, 30*time.Second, c.GetTokenExpirySkew())
	require.Equal(t, 30*time.Second, c.GetUpstreamTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", " tenant ")
	t.Setenv("AZURE_CLIENT_ID", "client")
	t.Setenv("AZURE_CLIENT_TYPE", "SPA")
	t.Setenv("PARTNER_CENTER_BASE_URL", "http://localhost:9999/")
	t.Setenv("PARTNER_CENTER_TOKEN_STORE_KIND", "Redis")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "tenant", c.GetTenantID())
	require.Equal(t, config.ClientTypeSPA, c.GetClientType())
	require.Equal(t, "http://localhost:9999", c.GetPartnerCenterBaseURL())
	require.Equal(t, config.StoreKindRedis, c.GetTokenStoreKind())
	require.Equal(t, 5*time.Second, c.GetUpstreamTimeout())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example"))
}

type fakeSecrets struct {
	payload string
}

func (f fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: aws.String(f.payload)}, nil
}

func TestLoadAWSSecrets(t *testing.T) {
	t.Run("no secret id is a no-op", func(t *testing.T) {
		t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "")
		t.Setenv("AWS_SECRET_ID", "")
		require.NoError(t, config.LoadAWSSecretsIntoEnv(context.Background(), fakeSecrets{payload: "not json"}))
	})

	t.Run("applies values without overwriting", func(t *testing.T) {
		t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "gateway/dev")
		t.Setenv("AZURE_CLIENT_SECRET", "")
		t.Setenv("AZURE_TENANT_ID", "from-env")

		err := config.LoadAWSSecretsIntoEnv(context.Background(), fakeSecrets{
			payload: `{"AZURE_CLIENT_SECRET":"s3cret","AZURE_TENANT_ID":"from-secret"}`,
		})
		require.NoError(t, err)
		require.Equal(t, "s3cret", config.GetEnv("AZURE_CLIENT_SECRET", ""))
		require.Equal(t, "from-env", config.GetEnv("AZURE_TENANT_ID", ""))
	})

	t.Run("invalid payload", func(t *testing.T) {
		t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "gateway/dev")
		require.Error(t, config.LoadAWSSecretsIntoEnv(context.Background(), fakeSecrets{payload: "nope"}))
	})
}
