package server

// Route path constants
const (
	// Serverless style entry point, operation selected with ?op=
	RoutePartnerCenter = "/api/partner-center"
	// Dev server mirror, operation in the path
	RoutePartnerCenterOp = "/api/partner-center/{op}"
	RouteAzureOp         = "/api/azure/{op}"

	RouteHealthz = "/healthz"
	RouteMetrics = "/metrics"
)

// Operations served under RoutePartnerCenter
const (
	OpConnect           = "connect"
	OpConnectGDAP       = "connect-gdap"
	OpConnectAzure      = "connect-azure"
	OpCallback          = "callback"
	OpStoreTokens       = "store-tokens"
	OpStatus            = "status"
	OpDisconnect        = "disconnect"
	OpHealth            = "health"
	OpCustomers         = "customers"
	OpIndirectResellers = "indirect-resellers"
	OpGDAPRelationships = "gdap-relationships"
	OpTest              = "test"
	OpSessionTest       = "session-test"
)

// Operations served under RouteAzureOp
const (
	OpSubscriptions = "subscriptions"
	OpFetch         = "fetch"
)
