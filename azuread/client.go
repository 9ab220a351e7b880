package azuread

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultAuthorityHost is the public cloud login host.
const DefaultAuthorityHost = "https://login.microsoftonline.com"

// Client calls the Azure AD v2 token endpoint.
type Client struct {
	authorityHost string
	httpClient    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient returns a token client for authorityHost. timeout bounds every call.
func NewClient(authorityHost string, timeout time.Duration, opts ...Option) *Client {
	if authorityHost == "" {
		authorityHost = DefaultAuthorityHost
	}
	c := &Client{
		authorityHost: strings.TrimRight(authorityHost, "/"),
		httpClient:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the authorize and token URLs for tenant.
func (c *Client) Endpoint(tenant string) oauth2.Endpoint {
	if c.authorityHost == DefaultAuthorityHost {
		return microsoft.AzureADEndpoint(tenant)
	}
	base := fmt.Sprintf("%s/%s/oauth2/v2.0", c.authorityHost, url.PathEscape(tenant))
	return oauth2.Endpoint{
		AuthURL:  base + "/authorize",
		TokenURL: base + "/token",
	}
}

func (c *Client) ExchangeAuthCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error) {
	return c.post(ctx, req.Tenant, GrantAuthorizationCode, req.form())
}

func (c *Client) RefreshUserToken(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	return c.post(ctx, req.Tenant, GrantRefreshToken, req.form())
}

// GetToken runs the client credentials grant. Scope defaults to the caller's choice;
// an empty scope is sent as-is and rejected by Azure AD.
func (c *Client) GetToken(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error) {
	return c.post(ctx, req.Tenant, GrantClientCredentials, req.form())
}

func (c *Client) post(ctx context.Context, tenant, grant string, form url.Values) (tok *TokenResponse, err error) {
	defer func() { metrics.RecordTokenExchange(grant, err) }()

	if tenant == "" || form.Get("client_id") == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "%s: tenant and client id are required", grant)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(tenant).TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", grant, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(grant, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(grant, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := newTokenExchangeError(resp.StatusCode, body)
		log.Warn().
			Str("grant", grant).
			Int("status", resp.StatusCode).
			Str("azure_error", te.AzureError).
			Stringer("classification", te.Code).
			Msg("token endpoint rejected request")
		return nil, te
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode token response: %w", grant, errors.ErrTokenExchangeFailed)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s: token response has no access_token: %w", grant, errors.ErrTokenExchangeFailed)
	}
	return &out, nil
}

// transportError separates timeouts, which are transient, from other transport failures.
func transportError(grant string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %v", grant, errors.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s: token endpoint unreachable: %w", grant, err)
}
