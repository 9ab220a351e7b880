package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-delegated-auth/azuread"
	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/delegated"
	"github.com/jrsteele09/go-delegated-auth/downstream"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/metrics"
	"github.com/jrsteele09/go-delegated-auth/sessions"
)

const (
	pathMPNProfile        = "/v1/profiles/mpn"
	pathCustomers         = "/v1/customers"
	pathIndirectResellers = "/v1/relationships?relationship_type=IsIndirectCloudSolutionProviderOf"
	pathGDAPRelationships = "/v1.0/tenantRelationships/delegatedAdminRelationships"

	defaultCustomerPageSize = 100
	maxCustomerPageSize     = 500

	maxJSONBody = 64 << 10
)

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	return sessions.EnsureSessionIDFor(w, r, s.config.GetSessionMaxAge())
}

// ConnectHandler redirects the browser to the Azure AD authorize endpoint.
func (s *Server) ConnectHandler(kind connections.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		authorizeURL, err := s.manager.Connect(r.Context(), sessionID, kind, s.redirectURI(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		http.Redirect(w, r, authorizeURL, http.StatusFound)
	}
}

// StoreTokensHandler accepts the tokens the browser redemption page obtained.
func (s *Server) StoreTokensHandler() http.HandlerFunc {
	type request struct {
		State        string `json:"state"`
		Kind         string `json:"kind"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body request
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		kind, err := connections.ParseKind(body.Kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		conn, err := s.manager.StoreBrowserTokens(r.Context(), sessionID, delegated.BrowserTokens{
			State:        body.State,
			Kind:         kind,
			AccessToken:  body.AccessToken,
			RefreshToken: body.RefreshToken,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":             true,
			"kind":           kind,
			"isPublicClient": conn.IsPublicClient,
		})
	}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		details, err := s.manager.Status(r.Context(), sessionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		connected := make(map[connections.Kind]bool, len(details))
		for kind, st := range details {
			connected[kind] = st.Connected
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"connected": connected,
			"details":   details,
		})
	}
}

// DisconnectHandler forgets one kind (?kind=) or the whole session. Always {ok:true}.
func (s *Server) DisconnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var kinds []connections.Kind
		if raw := r.URL.Query().Get("kind"); raw != "" {
			kind, err := connections.ParseKind(raw)
			if err != nil {
				writeError(w, r, err)
				return
			}
			kinds = append(kinds, kind)
		}
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.manager.Disconnect(r.Context(), sessionID, kinds...); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// HealthHandler calls the MPN profile with the delegated token when the session
// is connected, falling back to an app-only token when it is not.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		mode := "delegated"
		var token string
		fresh, err := s.manager.EnsureFreshToken(r.Context(), sessionID, connections.KindPartnerCenter)
		switch {
		case err == nil:
			token = fresh.AccessToken
		case errors.Is(err, errors.ErrNotConnected):
			appToken, appErr := s.manager.AppOnlyToken(r.Context(), azuread.ClientCredentialsRequest{})
			if appErr != nil {
				writeError(w, r, appErr)
				return
			}
			metrics.RecordFallback("app_only")
			token, mode = appToken.AccessToken, "app-only"
		default:
			writeError(w, r, err)
			return
		}

		resp, err := s.partnerCenter.FetchWithToken(r.Context(), token, pathMPNProfile)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeUpstream(w, r, s.partnerCenter.API(), resp, map[string]any{"mode": mode})
	}
}

func (s *Server) CustomersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := url.Values{}
		q.Set("size", strconv.Itoa(customerPageSize(r.URL.Query().Get("size"))))
		if seek := r.URL.Query().Get("seekToken"); seek != "" {
			q.Set("seekToken", seek)
		}
		s.delegatedFetch(w, r, connections.KindPartnerCenter, s.partnerCenter, pathCustomers+"?"+q.Encode())
	}
}

// customerPageSize defaults to 100 and clamps to [1, 500].
func customerPageSize(raw string) int {
	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultCustomerPageSize
	}
	return max(1, min(size, maxCustomerPageSize))
}

func (s *Server) IndirectResellersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.delegatedFetch(w, r, connections.KindPartnerCenter, s.partnerCenter, pathIndirectResellers)
	}
}

// GDAPRelationshipsHandler lists Graph delegated admin relationships with one customer.
func (s *Server) GDAPRelationshipsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("customerTenantId"))
		if raw == "" {
			writeError(w, r, errors.Wrapf(errors.ErrBadRequest, "customerTenantId is required"))
			return
		}
		customerTenantID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, errors.Wrapf(errors.ErrBadRequest, "customerTenantId must be a tenant GUID"))
			return
		}
		q := url.Values{}
		q.Set("$filter", "customer/tenantId eq '"+customerTenantID.String()+"'")
		s.delegatedFetch(w, r, connections.KindGDAP, s.graph, pathGDAPRelationships+"?"+q.Encode())
	}
}

// AppOnlyTestHandler is a client credentials smoke test with caller supplied credentials.
func (s *Server) AppOnlyTestHandler() http.HandlerFunc {
	type request struct {
		TenantID     string `json:"tenantId"`
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
		Scope        string `json:"scope"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body request
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		if body.TenantID == "" || body.ClientID == "" || body.ClientSecret == "" {
			writeError(w, r, errors.Wrapf(errors.ErrBadRequest, "tenantId, clientId and clientSecret are required"))
			return
		}
		tok, err := s.manager.AppOnlyToken(r.Context(), azuread.ClientCredentialsRequest{
			Tenant:       body.TenantID,
			ClientID:     body.ClientID,
			ClientSecret: body.ClientSecret,
			Scope:        body.Scope,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp, err := s.partnerCenter.FetchWithToken(r.Context(), tok.AccessToken, pathMPNProfile)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeUpstream(w, r, s.partnerCenter.API(), resp, map[string]any{
			"mode":      "app-only",
			"tokenType": tok.TokenType,
			"expiresIn": tok.ExpiresIn,
		})
	}
}

// SessionTestHandler forwards a caller supplied bearer token to the MPN profile.
func (s *Server) SessionTestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, errors.Wrapf(errors.ErrInvalidToken, "missing bearer token"))
			return
		}
		resp, err := s.partnerCenter.FetchWithToken(r.Context(), token, pathMPNProfile)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeUpstream(w, r, s.partnerCenter.API(), resp, map[string]any{"mode": "bearer"})
	}
}

// delegatedFetch is the common connected-session read: fresh token, GET, relay.
func (s *Server) delegatedFetch(w http.ResponseWriter, r *http.Request, kind connections.Kind, client *downstream.Client, path string) {
	sessionID, err := s.sessionID(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fresh, err := s.manager.EnsureFreshToken(r.Context(), sessionID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := client.FetchWithToken(r.Context(), fresh.AccessToken, path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeUpstream(w, r, client.API(), resp, map[string]any{"mfaWarning": fresh.MFAWarning})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.Wrapf(errors.ErrBadRequest, "request body is empty")
		}
		return errors.Wrapf(errors.ErrBadRequest, "invalid JSON body: %v", err)
	}
	return nil
}
