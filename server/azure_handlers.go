package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
)

var resourceManagerPrefixes = []string{"/subscriptions", "/providers"}

// SubscriptionsHandler lists the subscriptions the connected Azure user can see.
func (s *Server) SubscriptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := s.sessionID(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		fresh, err := s.manager.EnsureFreshToken(r.Context(), sessionID, connections.KindAzure)
		if err != nil {
			writeError(w, r, err)
			return
		}
		expiresAt, _ := fresh.Claims.ExpiresAt()
		subs, err := s.subscriptions.ListSubscriptions(r.Context(), fresh.AccessToken, expiresAt)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":            true,
			"count":         len(subs),
			"subscriptions": subs,
		})
	}
}

// ResourceManagerFetchHandler is a raw ARM GET (?path=) with the delegated token.
func (s *Server) ResourceManagerFetchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if err := validResourceManagerPath(path); err != nil {
			writeError(w, r, err)
			return
		}
		s.delegatedFetch(w, r, connections.KindAzure, s.resourceManager, path)
	}
}

func validResourceManagerPath(path string) error {
	if path == "" {
		return errors.Wrapf(errors.ErrBadRequest, "path is required")
	}
	if strings.Contains(path, "..") || strings.Contains(path, "://") {
		return errors.Wrapf(errors.ErrBadRequest, "path must be a resource manager path")
	}
	for _, prefix := range resourceManagerPrefixes {
		if strings.HasPrefix(path, prefix) {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrBadRequest, "path must start with %s", strings.Join(resourceManagerPrefixes, " or "))
}
