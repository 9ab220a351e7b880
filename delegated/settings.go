package delegated

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/config"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
)

// Settings is the app registration and scope set the manager works with.
type Settings struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	ClientType   config.ClientType
	// Scopes holds the delegated scope string requested per connection kind.
	Scopes map[connections.Kind]string
	// AppScope is requested by the app-only client credentials grant.
	AppScope   string
	ExpirySkew time.Duration
}

type settingsSource interface {
	config.AzureConfig
	config.SecurityConfig
}

func SettingsFromConfig(c settingsSource) Settings {
	return Settings{
		TenantID:     c.GetTenantID(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		ClientType:   c.GetClientType(),
		Scopes: map[connections.Kind]string{
			connections.KindPartnerCenter: c.GetPartnerCenterDelegatedScope(),
			connections.KindGDAP:          c.GetGDAPGraphScopes(),
			connections.KindAzure:         c.GetAzureManagementScopes(),
		},
		AppScope:   c.GetPartnerCenterScope(),
		ExpirySkew: c.GetTokenExpirySkew(),
	}
}

// validate reports the missing app registration settings. The secret is optional
// because public clients have none.
func (s Settings) validate() error {
	var missing []string
	if s.TenantID == "" {
		missing = append(missing, "AZURE_TENANT_ID")
	}
	if s.ClientID == "" {
		missing = append(missing, "AZURE_CLIENT_ID")
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrConfiguration, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s Settings) scope(k connections.Kind) (string, error) {
	scope := s.Scopes[k]
	if scope == "" {
		return "", errors.Wrapf(errors.ErrConfiguration, "no delegated scope configured for %s", k)
	}
	return scope, nil
}
