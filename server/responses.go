package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-delegated-auth/azuread"
	"github.com/jrsteele09/go-delegated-auth/downstream"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/rs/zerolog"
)

const contentTypeJSON = "application/json"

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError is the single place errors become responses:
// {ok:false, error, timestamp} plus whatever detail the error type carries.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	body := map[string]any{
		"ok":        false,
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if msg := errors.UserMessage(err); msg != "" {
		body["message"] = msg
	}

	var exchangeErr *azuread.TokenExchangeError
	var upstreamErr *downstream.UpstreamError
	switch {
	case errors.As(err, &exchangeErr):
		if exchangeErr.Status == http.StatusBadRequest || exchangeErr.Status == http.StatusUnauthorized {
			status = exchangeErr.Status
		}
		body["code"] = exchangeErr.Code.String()
		if exchangeErr.Description != "" {
			body["description"] = exchangeErr.Description
		}
	case errors.As(err, &upstreamErr):
		status = upstreamErr.Status
		body["status"] = upstreamErr.Status
		body["debug"] = upstreamErr.Debug
	}

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Info().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, body)
}

// writeUpstream relays a downstream response, turning a non-2xx status into an
// UpstreamError response.
func writeUpstream(w http.ResponseWriter, r *http.Request, api string, resp *downstream.Response, extra map[string]any) {
	if err := resp.AsError(api); err != nil {
		writeError(w, r, err)
		return
	}
	body := map[string]any{
		"ok":     true,
		"status": resp.Status,
		"data":   resp.Data,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}
