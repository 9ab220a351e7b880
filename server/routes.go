package server

import (
	"net/http"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// operation is one ?op= handler and the only method it accepts.
type operation struct {
	method  string
	handler http.HandlerFunc
}

func (s *Server) initRoutes() {
	s.partnerCenterOps = map[string]operation{
		OpConnect:           {http.MethodGet, s.ConnectHandler(connections.KindPartnerCenter)},
		OpConnectGDAP:       {http.MethodGet, s.ConnectHandler(connections.KindGDAP)},
		OpConnectAzure:      {http.MethodGet, s.ConnectHandler(connections.KindAzure)},
		OpCallback:          {http.MethodGet, s.CallbackHandler()},
		OpStoreTokens:       {http.MethodPost, s.StoreTokensHandler()},
		OpStatus:            {http.MethodGet, s.StatusHandler()},
		OpDisconnect:        {http.MethodPost, s.DisconnectHandler()},
		OpHealth:            {http.MethodGet, s.HealthHandler()},
		OpCustomers:         {http.MethodGet, s.CustomersHandler()},
		OpIndirectResellers: {http.MethodGet, s.IndirectResellersHandler()},
		OpGDAPRelationships: {http.MethodGet, s.GDAPRelationshipsHandler()},
		OpTest:              {http.MethodPost, s.AppOnlyTestHandler()},
		OpSessionTest:       {http.MethodGet, s.SessionTestHandler()},
	}
	s.azureOps = map[string]operation{
		OpSubscriptions: {http.MethodGet, s.SubscriptionsHandler()},
		OpFetch:         {http.MethodGet, s.ResourceManagerFetchHandler()},
	}

	partnerCenter := ChainMiddleware(dispatch(s.partnerCenterOps), s.APIMiddleware(s.FrameSecurityMiddleware)...)
	s.RegisterRouteHandler(RoutePartnerCenter, partnerCenter)
	s.RegisterRouteHandler(RoutePartnerCenterOp, partnerCenter)
	s.RegisterRouteHandler(RouteAzureOp, ChainMiddleware(dispatch(s.azureOps), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealthz, ChainMiddleware(s.LivenessHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}

// dispatch routes on the op named in the path ({op}) or the ?op= query parameter.
// The method is checked before any handler runs so a wrong method never touches
// session state.
func dispatch(ops map[string]operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := operationName(r)
		op, ok := ops[name]
		if !ok {
			writeError(w, r, errors.Wrapf(errors.ErrBadRequest, "unknown op %q", name))
			return
		}
		if r.Method != op.method {
			w.Header().Set("Allow", op.method)
			writeError(w, r, errors.Wrapf(errors.ErrMethodNotAllowed, "op %s requires %s", name, op.method))
			return
		}
		op.handler(w, r)
	}
}

func operationName(r *http.Request) string {
	if op := r.PathValue("op"); op != "" {
		return op
	}
	return r.URL.Query().Get("op")
}

var knownOperations = map[string]bool{
	OpConnect: true, OpConnectGDAP: true, OpConnectAzure: true, OpCallback: true,
	OpStoreTokens: true, OpStatus: true, OpDisconnect: true, OpHealth: true,
	OpCustomers: true, OpIndirectResellers: true, OpGDAPRelationships: true,
	OpTest: true, OpSessionTest: true, OpSubscriptions: true, OpFetch: true,
}

// operationLabel keeps the metrics label set bounded.
func operationLabel(r *http.Request) string {
	if name := operationName(r); knownOperations[name] {
		return name
	}
	if r.URL.Path == RouteHealthz {
		return "healthz"
	}
	return "unknown"
}

func (s *Server) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "app": s.config.GetAppName()})
	}
}
