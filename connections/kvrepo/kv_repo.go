// Package kvrepo stores session records in a REST key-value service speaking the
// Upstash / Vercel KV command protocol: each command is a JSON array POSTed to the
// base URL and answered with {"result": ...} or {"error": "..."}.
package kvrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
)

var _ connections.Repo = (*KVRepo)(nil)

type KVRepo struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*KVRepo)

func WithHTTPClient(c *http.Client) Option {
	return func(r *KVRepo) { r.httpClient = c }
}

func New(baseURL, token string, opts ...Option) (*KVRepo, error) {
	if baseURL == "" || token == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "KV_REST_API_URL and KV_REST_API_TOKEN are required")
	}
	r := &KVRepo{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type commandResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (r *KVRepo) Read(ctx context.Context, key string) (*connections.Record, error) {
	res, err := r.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || string(res) == "null" {
		return nil, nil
	}
	var payload string
	if err := json.Unmarshal(res, &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "decode %s: %v", key, err)
	}
	var rec connections.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "decode %s: %v", key, err)
	}
	return &rec, nil
}

func (r *KVRepo) Write(ctx context.Context, key string, rec *connections.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(errors.ErrStore, "encode %s: %v", key, err)
	}
	_, err = r.do(ctx, "SET", key, string(data))
	return err
}

func (r *KVRepo) Delete(ctx context.Context, key string) error {
	_, err := r.do(ctx, "DEL", key)
	return err
}

func (r *KVRepo) do(ctx context.Context, args ...string) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "encode command: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%s: %v", args[0], err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%s: read response: %v", args[0], err)
	}
	var out commandResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(errors.ErrStore, "%s: status %d: %s", args[0], resp.StatusCode, utils.Truncate(string(raw), 200))
	}
	if out.Error != "" {
		return nil, errors.Wrapf(errors.ErrStore, "%s: %s", args[0], out.Error)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Wrapf(errors.ErrStore, "%s: status %d", args[0], resp.StatusCode)
	}
	return out.Result, nil
}

