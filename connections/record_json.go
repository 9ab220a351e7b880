package connections

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Stored layout is flat: Partner Center fields are unprefixed, the other kinds use
// their kind name as a camelCase prefix (gdapRefreshToken, azureAccessToken...).
const (
	fieldConnected         = "connected"
	fieldConnectedAt       = "connectedAt"
	fieldRefreshToken      = "refreshToken"
	fieldAccessToken       = "accessToken"
	fieldAccessTokenClaims = "accessTokenClaims"
	fieldIsPublicClient    = "isPublicClient"
	fieldLastRefreshedAt   = "lastRefreshedAt"

	fieldPendingKind         = "pendingKind"
	fieldPendingState        = "pendingState"
	fieldPendingCodeVerifier = "pendingCodeVerifier"
)

func fieldName(k Kind, field string) string {
	if k == KindPartnerCenter {
		return field
	}
	return string(k) + strings.ToUpper(field[:1]) + field[1:]
}

func (r *Record) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for _, k := range Kinds() {
		c := r.Connection(k)
		if c == nil {
			continue
		}
		out[fieldName(k, fieldConnected)] = c.Connected
		out[fieldName(k, fieldIsPublicClient)] = c.IsPublicClient
		if !c.ConnectedAt.IsZero() {
			out[fieldName(k, fieldConnectedAt)] = c.ConnectedAt.UTC().Format(time.RFC3339Nano)
		}
		if !c.LastRefreshedAt.IsZero() {
			out[fieldName(k, fieldLastRefreshedAt)] = c.LastRefreshedAt.UTC().Format(time.RFC3339Nano)
		}
		if c.RefreshToken != "" {
			out[fieldName(k, fieldRefreshToken)] = c.RefreshToken
		}
		if c.AccessToken != "" {
			out[fieldName(k, fieldAccessToken)] = c.AccessToken
		}
		if c.AccessTokenClaims != nil {
			out[fieldName(k, fieldAccessTokenClaims)] = c.AccessTokenClaims
		}
	}
	if p := r.Pending; p != nil {
		out[fieldPendingKind] = p.Kind
		out[fieldPendingState] = p.State
		out[fieldPendingCodeVerifier] = p.CodeVerifier
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{Connections: map[Kind]*Connection{}}

	for _, k := range Kinds() {
		var (
			c     Connection
			found bool
		)
		fields := []struct {
			name string
			dst  any
		}{
			{fieldConnected, &c.Connected},
			{fieldRefreshToken, &c.RefreshToken},
			{fieldAccessToken, &c.AccessToken},
			{fieldAccessTokenClaims, &c.AccessTokenClaims},
			{fieldIsPublicClient, &c.IsPublicClient},
		}
		for _, f := range fields {
			v, ok := raw[fieldName(k, f.name)]
			if !ok {
				continue
			}
			found = true
			if err := json.Unmarshal(v, f.dst); err != nil {
				return fmt.Errorf("decode %s: %w", fieldName(k, f.name), err)
			}
		}
		for name, dst := range map[string]*time.Time{
			fieldConnectedAt:     &c.ConnectedAt,
			fieldLastRefreshedAt: &c.LastRefreshedAt,
		} {
			ts, err := decodeTime(raw[fieldName(k, name)])
			if err != nil {
				return fmt.Errorf("decode %s: %w", fieldName(k, name), err)
			}
			if !ts.IsZero() {
				*dst = ts
				found = true
			}
		}
		if found {
			r.Connections[k] = &c
		}
	}

	var p Pending
	if err := decodeString(raw[fieldPendingState], &p.State); err != nil {
		return fmt.Errorf("decode %s: %w", fieldPendingState, err)
	}
	if p.State != "" {
		var kind string
		if err := decodeString(raw[fieldPendingKind], &kind); err != nil {
			return fmt.Errorf("decode %s: %w", fieldPendingKind, err)
		}
		if err := decodeString(raw[fieldPendingCodeVerifier], &p.CodeVerifier); err != nil {
			return fmt.Errorf("decode %s: %w", fieldPendingCodeVerifier, err)
		}
		p.Kind = Kind(kind)
		r.Pending = &p
	}
	return nil
}

func decodeString(v json.RawMessage, dst *string) error {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	return json.Unmarshal(v, dst)
}

func decodeTime(v json.RawMessage) (time.Time, error) {
	var s string
	if err := decodeString(v, &s); err != nil || s == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}
