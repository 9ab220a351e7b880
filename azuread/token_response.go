package azuread

import (
	"encoding/json"
	"strconv"
)

// TokenResponse is the Azure AD v2 token endpoint response, shared by every grant.
type TokenResponse struct {
	// AccessToken is forwarded as the bearer credential to the resource API.
	// Delegated tokens are JWTs; they are decoded for expiry and MFA inspection only.
	AccessToken string `json:"access_token"`

	// RefreshToken is returned for delegated grants when offline_access was requested.
	// Azure AD issues a new one on every refresh; the previous value must not be reused.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is present when openid was requested. It is never trusted here.
	IDToken string `json:"id_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	// Azure AD v1 style responses send it as a string, so both forms are accepted.
	ExpiresIn Seconds `json:"expires_in,omitempty"`

	// Scope lists the scopes actually granted, space separated.
	Scope string `json:"scope,omitempty"`
}

type Seconds int64

func (s *Seconds) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Seconds(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return err
	}
	*s = Seconds(n)
	return nil
}
