package server

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/delegated"
)

// redemptionScript is serialised into the page for the browser to redeem the
// authorization code itself.
type redemptionScript struct {
	Kind          connections.Kind `json:"kind"`
	TokenEndpoint string           `json:"tokenEndpoint"`
	ClientID      string           `json:"clientId"`
	Code          string           `json:"code"`
	CodeVerifier  string           `json:"codeVerifier"`
	RedirectURI   string           `json:"redirectUri"`
	Scope         string           `json:"scope"`
	State         string           `json:"state"`
	StoreURL      string           `json:"storeUrl"`
	DoneURL       string           `json:"doneUrl"`
}

type redemptionPage struct {
	AppName    string
	Redemption redemptionScript
}

// CallbackHandler completes the authorization code flow. On success the browser
// is sent to the post-connect page; when Azure AD insists on browser redemption
// the redemption page is rendered instead.
func (s *Server) CallbackHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("browser_redeem.html")

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		redirectURI := s.redirectURI(r)
		result, err := s.manager.Callback(r.Context(), sessionID, delegated.CallbackParams{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}, redirectURI)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if br := result.BrowserRedemption; br != nil {
			page := redemptionPage{
				AppName: s.config.GetAppName(),
				Redemption: redemptionScript{
					Kind:          br.Kind,
					TokenEndpoint: br.TokenEndpoint,
					ClientID:      br.ClientID,
					Code:          br.Code,
					CodeVerifier:  br.CodeVerifier,
					RedirectURI:   br.RedirectURI,
					Scope:         br.Scope,
					State:         br.State,
					StoreURL:      RoutePartnerCenter + "?op=" + OpStoreTokens,
					DoneURL:       s.postConnectURL(br.Kind, false),
				},
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if err := tmpl.Execute(w, page); err != nil {
				writeError(w, r, err)
			}
			return
		}

		http.Redirect(w, r, s.postConnectURL(result.Kind, result.MFAWarning), http.StatusFound)
	}
}

// redirectURI is the callback URL registered with Azure AD. Connect and callback
// must agree on it, so it always points at the ?op= form.
func (s *Server) redirectURI(r *http.Request) string {
	if uri := s.config.GetRedirectURI(); uri != "" {
		return uri
	}
	return getScheme(r) + "://" + r.Host + RoutePartnerCenter + "?op=" + OpCallback
}

func (s *Server) postConnectURL(kind connections.Kind, mfaWarning bool) string {
	target := s.config.GetPostConnectRedirect()
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("connected", string(kind))
	if mfaWarning {
		q.Set("mfaWarning", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func mustParseTemplate(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}
