package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// values is the raw environment surface. Defaults mirror the local dev server.
type values struct {
	Port     string `envconfig:"PARTNER_CENTER_DEV_PORT" default:"4000"`
	AppName  string `envconfig:"APP_NAME" default:"Partner Center Gateway"`
	Env      string `envconfig:"ENV" default:"DEV"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	TenantID     string `envconfig:"AZURE_TENANT_ID"`
	ClientID     string `envconfig:"AZURE_CLIENT_ID"`
	ClientSecret string `envconfig:"AZURE_CLIENT_SECRET"`
	ClientType   string `envconfig:"AZURE_CLIENT_TYPE" default:"auto"`
	AuthorityURL string `envconfig:"AZURE_AUTHORITY_HOST" default:"https://login.microsoftonline.com"`

	PartnerCenterScope          string `envconfig:"PARTNER_CENTER_SCOPE" default:"https://api.partnercenter.microsoft.com/.default"`
	PartnerCenterDelegatedScope string `envconfig:"PARTNER_CENTER_SCOPE_DELEGATED" default:"https://api.partnercenter.microsoft.com/user_impersonation offline_access openid profile"`
	GDAPGraphScopes             string `envconfig:"GDAP_GRAPH_SCOPES" default:"https://graph.microsoft.com/DelegatedAdminRelationship.Read.All offline_access openid profile"`
	AzureManagementScopes       string `envconfig:"AZURE_MANAGEMENT_SCOPES" default:"https://management.azure.com/user_impersonation offline_access openid profile"`

	PartnerCenterBaseURL   string        `envconfig:"PARTNER_CENTER_BASE_URL" default:"https://api.partnercenter.microsoft.com"`
	GraphBaseURL           string        `envconfig:"GRAPH_BASE_URL" default:"https://graph.microsoft.com"`
	AzureManagementBaseURL string        `envconfig:"AZURE_MANAGEMENT_BASE_URL" default:"https://management.azure.com"`
	UpstreamTimeout        time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	RedirectURI            string        `envconfig:"PARTNER_CENTER_REDIRECT_URI"`
	PostConnectRedirect    string        `envconfig:"POST_CONNECT_REDIRECT" default:"/"`

	TokenStoreKind     string `envconfig:"PARTNER_CENTER_TOKEN_STORE_KIND" default:"file"`
	TokenStorePath     string `envconfig:"PARTNER_CENTER_TOKEN_STORE" default:".partner-center-token.json"`
	KVRestURL          string `envconfig:"KV_REST_API_URL"`
	KVRestToken        string `envconfig:"KV_REST_API_TOKEN"`
	RedisURL           string `envconfig:"REDIS_URL"`
	TokenEncryptionKey string `envconfig:"TOKEN_ENCRYPTION_KEY"`

	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	SessionMaxAge   time.Duration `envconfig:"SESSION_MAX_AGE" default:"720h"`
	TokenExpirySkew time.Duration `envconfig:"TOKEN_EXPIRY_SKEW" default:"30s"`
	LockTTL         time.Duration `envconfig:"SESSION_LOCK_TTL" default:"45s"`
}

type EnvVars struct {
	v values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := strings.TrimSpace(e.v.Port)
	if port == "" {
		port = "4000"
	}
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.AppName
}

func (e EnvVars) GetEnv() string {
	if e.v.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.v.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.v.LogLevel
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
