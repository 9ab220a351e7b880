package config

import (
	"strings"
	"time"
)

// ClientType describes how the Azure AD app registration redeems codes.
type ClientType string

const (
	// ClientTypeAuto sends the secret when one is configured and falls back on AADSTS700025.
	ClientTypeAuto ClientType = "auto"
	// ClientTypeSPA never redeems server side; the browser redemption page is served directly.
	ClientTypeSPA ClientType = "spa"
	// ClientTypeConfidential always sends the secret.
	ClientTypeConfidential ClientType = "confidential"
)

type AzureConfig interface {
	GetTenantID() string
	GetClientID() string
	GetClientSecret() string
	GetClientType() ClientType
	GetAuthorityHost() string
	GetPartnerCenterScope() string
	GetPartnerCenterDelegatedScope() string
	GetGDAPGraphScopes() string
	GetAzureManagementScopes() string
	GetPartnerCenterBaseURL() string
	GetGraphBaseURL() string
	GetAzureManagementBaseURL() string
	GetUpstreamTimeout() time.Duration
	GetRedirectURI() string
	GetPostConnectRedirect() string
}

type Azure struct {
	v values
}

var _ AzureConfig = Azure{}

func (a Azure) GetTenantID() string     { return strings.TrimSpace(a.v.TenantID) }
func (a Azure) GetClientID() string     { return strings.TrimSpace(a.v.ClientID) }
func (a Azure) GetClientSecret() string { return strings.TrimSpace(a.v.ClientSecret) }

func (a Azure) GetClientType() ClientType {
	switch ClientType(strings.ToLower(strings.TrimSpace(a.v.ClientType))) {
	case ClientTypeSPA:
		return ClientTypeSPA
	case ClientTypeConfidential:
		return ClientTypeConfidential
	default:
		return ClientTypeAuto
	}
}

func (a Azure) GetAuthorityHost() string {
	return strings.TrimRight(a.v.AuthorityURL, "/")
}

func (a Azure) GetPartnerCenterScope() string          { return a.v.PartnerCenterScope }
func (a Azure) GetPartnerCenterDelegatedScope() string { return a.v.PartnerCenterDelegatedScope }
func (a Azure) GetGDAPGraphScopes() string             { return a.v.GDAPGraphScopes }
func (a Azure) GetAzureManagementScopes() string       { return a.v.AzureManagementScopes }

func (a Azure) GetPartnerCenterBaseURL() string {
	return strings.TrimRight(a.v.PartnerCenterBaseURL, "/")
}

func (a Azure) GetGraphBaseURL() string {
	return strings.TrimRight(a.v.GraphBaseURL, "/")
}

func (a Azure) GetAzureManagementBaseURL() string {
	return strings.TrimRight(a.v.AzureManagementBaseURL, "/")
}

func (a Azure) GetUpstreamTimeout() time.Duration {
	if a.v.UpstreamTimeout <= 0 {
		return 30 * time.Second
	}
	return a.v.UpstreamTimeout
}

// GetRedirectURI returns the configured callback override, empty when the
// callback URL should be derived from the incoming request.
func (a Azure) GetRedirectURI() string {
	return strings.TrimSpace(a.v.RedirectURI)
}

func (a Azure) GetPostConnectRedirect() string {
	if a.v.PostConnectRedirect == "" {
		return "/"
	}
	return a.v.PostConnectRedirect
}
