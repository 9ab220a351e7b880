package azuread

import "net/url"

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// AuthCodeRequest redeems an authorization code. ClientSecret is omitted from
// the request when empty, as public clients require.
type AuthCodeRequest struct {
	Tenant       string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	Scope        string
}

type RefreshRequest struct {
	Tenant       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
}

// ClientCredentialsRequest requests an app-only token.
type ClientCredentialsRequest struct {
	Tenant       string
	ClientID     string
	ClientSecret string
	Scope        string
}

func (r AuthCodeRequest) form() url.Values {
	v := url.Values{}
	v.Set("grant_type", GrantAuthorizationCode)
	v.Set("client_id", r.ClientID)
	v.Set("code", r.Code)
	v.Set("redirect_uri", r.RedirectURI)
	v.Set("code_verifier", r.CodeVerifier)
	setIfPresent(v, "scope", r.Scope)
	setIfPresent(v, "client_secret", r.ClientSecret)
	return v
}

func (r RefreshRequest) form() url.Values {
	v := url.Values{}
	v.Set("grant_type", GrantRefreshToken)
	v.Set("client_id", r.ClientID)
	v.Set("refresh_token", r.RefreshToken)
	setIfPresent(v, "scope", r.Scope)
	setIfPresent(v, "client_secret", r.ClientSecret)
	return v
}

func (r ClientCredentialsRequest) form() url.Values {
	v := url.Values{}
	v.Set("grant_type", GrantClientCredentials)
	v.Set("client_id", r.ClientID)
	v.Set("client_secret", r.ClientSecret)
	setIfPresent(v, "scope", r.Scope)
	return v
}

func setIfPresent(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
