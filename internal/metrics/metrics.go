// Package metrics defines the gateway's Prometheus collectors. Collectors register
// with the default registry on import; use the Record helpers to update them.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "partner_center_gateway"

var (
	// TokenExchangesTotal counts token endpoint calls by grant and result.
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "azuread",
			Name:      "token_exchanges_total",
			Help:      "Token endpoint calls by grant type and result",
		},
		[]string{"grant", "result"}, // grant: authorization_code, refresh_token, client_credentials
	)

	// RefreshesTotal counts delegated token refresh attempts by connection kind and result.
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delegated",
			Name:      "refreshes_total",
			Help:      "Delegated token refreshes by connection kind and result",
		},
		[]string{"kind", "result"},
	)

	// FallbacksTotal counts public client and browser redemption fallbacks.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delegated",
			Name:      "fallbacks_total",
			Help:      "Code redemption fallbacks by type",
		},
		[]string{"type"}, // type: public_client, browser_redemption
	)

	// UpstreamRequestsTotal counts downstream API calls by API and status class.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Downstream API calls by api and status class",
		},
		[]string{"api", "status"},
	)

	// HTTPRequestsTotal counts gateway requests by op and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Gateway requests by op and status code",
		},
		[]string{"op", "status"},
	)

	// HTTPRequestDurationSeconds measures gateway request latency by op.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func RecordTokenExchange(grant string, err error) {
	TokenExchangesTotal.WithLabelValues(grant, result(err)).Inc()
}

func RecordRefresh(kind string, err error) {
	RefreshesTotal.WithLabelValues(kind, result(err)).Inc()
}

func RecordFallback(fallbackType string) {
	FallbacksTotal.WithLabelValues(fallbackType).Inc()
}

// RecordUpstream records a downstream call. A zero status means a transport failure.
func RecordUpstream(api string, status int) {
	UpstreamRequestsTotal.WithLabelValues(api, StatusClass(status)).Inc()
}

func RecordHTTPRequest(op string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(op).Observe(seconds)
}

// StatusClass buckets an HTTP status into "2xx".."5xx", or "error" for zero.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
