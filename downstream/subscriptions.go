package downstream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/metrics"
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
	"golang.org/x/oauth2"
)

const defaultResourceManager = "https://management.azure.com"

// Subscription is the subset of an ARM subscription the gateway returns.
type Subscription struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscriptionId"`
	DisplayName    string `json:"displayName"`
	State          string `json:"state"`
	TenantID       string `json:"tenantId"`
}

// SubscriptionLister lists the subscriptions visible to a delegated ARM token.
type SubscriptionLister struct {
	options *arm.ClientOptions
}

// NewSubscriptionLister targets endpoint, the ARM base URL. transport may be nil.
func NewSubscriptionLister(endpoint string, timeout time.Duration, transport policy.Transporter) *SubscriptionLister {
	endpoint = strings.TrimRight(endpoint, "/")
	opts := &arm.ClientOptions{}
	if endpoint != "" && endpoint != defaultResourceManager {
		opts.Cloud = cloud.Configuration{
			ActiveDirectoryAuthorityHost: cloud.AzurePublic.ActiveDirectoryAuthorityHost,
			Services: map[cloud.ServiceName]cloud.ServiceConfiguration{
				cloud.ResourceManager: {Endpoint: endpoint, Audience: defaultResourceManager},
			},
		}
	}
	if transport == nil {
		transport = &http.Client{Timeout: timeout}
	}
	opts.Transport = transport
	opts.Retry = policy.RetryOptions{MaxRetries: -1}
	return &SubscriptionLister{options: opts}
}

func (l *SubscriptionLister) ListSubscriptions(ctx context.Context, accessToken string, expiresAt time.Time) ([]Subscription, error) {
	cred := &staticTokenCredential{token: &oauth2.Token{AccessToken: accessToken, Expiry: expiresAt}}
	client, err := armsubscriptions.NewClient(cred, l.options)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "resource manager client: %v", err)
	}

	out := []Subscription{}
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, armError(err)
		}
		metrics.RecordUpstream(APIResourceManager, http.StatusOK)
		for _, s := range page.Value {
			if s == nil {
				continue
			}
			sub := Subscription{
				ID:             utils.Value(s.ID),
				SubscriptionID: utils.Value(s.SubscriptionID),
				DisplayName:    utils.Value(s.DisplayName),
				State:          string(utils.Value(s.State)),
				TenantID:       utils.Value(s.TenantID),
			}
			out = append(out, sub)
		}
	}
	return out, nil
}

func armError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		metrics.RecordUpstream(APIResourceManager, respErr.StatusCode)
		return &UpstreamError{API: APIResourceManager, Status: respErr.StatusCode, Debug: DebugBody(map[string]any{"raw": respErr.Error()})}
	}
	metrics.RecordUpstream(APIResourceManager, 0)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", APIResourceManager, errors.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s: list subscriptions: %w", APIResourceManager, err)
}

// staticTokenCredential hands the SDK an already acquired delegated token.
type staticTokenCredential struct {
	token *oauth2.Token
}

func (c *staticTokenCredential) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if c.token == nil || c.token.AccessToken == "" {
		return azcore.AccessToken{}, errors.ErrNotConnected
	}
	expiry := c.token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(5 * time.Minute)
	}
	return azcore.AccessToken{Token: c.token.AccessToken, ExpiresOn: expiry}, nil
}
