// Package downstream calls the resource APIs (Partner Center, Microsoft Graph,
// Azure Resource Manager) with a delegated or app-only bearer token.
package downstream

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
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
)

// DebugBodyLimit caps the upstream body echoed back in error responses.
const DebugBodyLimit = 3000

// API labels used for metrics and logs.
const (
	APIPartnerCenter   = "partner_center"
	APIGraph           = "graph"
	APIResourceManager = "resource_manager"
)

// Response is an upstream answer normalised to {status, data}. Any status is a
// successful call at this layer; callers decide what non-2xx means.
type Response struct {
	Status int `json:"status"`
	Data   any `json:"data"`
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client issues GETs against one resource API.
type Client struct {
	api        string
	baseURL    *url.URL
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func NewClient(api, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "%s base url %q", api, baseURL)
	}
	c := &Client{
		api:        api,
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) API() string {
	return c.api
}

// FetchWithToken GETs pathOrURL with the bearer token. Relative paths resolve
// against the base URL; absolute URLs must point at the same host so a token is
// never sent elsewhere. Only transport failures return an error.
func (c *Client) FetchWithToken(ctx context.Context, token, pathOrURL string) (*Response, error) {
	target, err := c.resolve(pathOrURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrBadRequest, "%s: %v", c.api, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstream(c.api, 0)
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordUpstream(c.api, 0)
		return nil, c.transportError(err)
	}
	metrics.RecordUpstream(c.api, resp.StatusCode)
	return &Response{Status: resp.StatusCode, Data: parseBody(body)}, nil
}

func (c *Client) resolve(pathOrURL string) (string, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		u, err := url.Parse(pathOrURL)
		if err != nil {
			return "", errors.Wrapf(errors.ErrBadRequest, "%s: %v", c.api, err)
		}
		if !strings.EqualFold(u.Host, c.baseURL.Host) {
			return "", errors.Wrapf(errors.ErrBadRequest, "%s: refusing to send token to %s", c.api, u.Host)
		}
		return u.String(), nil
	}
	if !strings.HasPrefix(pathOrURL, "/") {
		pathOrURL = "/" + pathOrURL
	}
	return c.baseURL.String() + pathOrURL, nil
}

func (c *Client) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %v", c.api, errors.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s: request failed: %w", c.api, err)
}

func parseBody(body []byte) any {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return map[string]any{"raw": string(body)}
	}
	return data
}

// UpstreamError is a non-2xx answer from a resource API.
type UpstreamError struct {
	API    string
	Status int
	Debug  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d", e.API, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return errors.ErrUpstreamAPI
}

// AsError converts a non-2xx response into an *UpstreamError, nil otherwise.
func (r *Response) AsError(api string) error {
	if r.OK() {
		return nil
	}
	return &UpstreamError{API: api, Status: r.Status, Debug: DebugBody(r.Data)}
}

// DebugBody renders data for an error response, truncated to DebugBodyLimit.
func DebugBody(data any) string {
	if m, ok := data.(map[string]any); ok {
		if raw, ok := m["raw"].(string); ok && len(m) == 1 {
			return utils.Truncate(raw, DebugBodyLimit)
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return utils.Truncate(string(b), DebugBodyLimit)
}
