// Package keyringrepo keeps session records in the OS credential manager. It is
// meant for the single-operator dev server; platform size limits on secrets apply.
package keyringrepo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jrsteele09/go-delegated-auth/connections"
	apperrors "github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/zalando/go-keyring"
)

const DefaultService = "partner-center-gateway"

var _ connections.Repo = (*KeyringRepo)(nil)

type KeyringRepo struct {
	service string
}

func New(service string) *KeyringRepo {
	if service == "" {
		service = DefaultService
	}
	return &KeyringRepo{service: service}
}

func (k *KeyringRepo) Read(_ context.Context, key string) (*connections.Record, error) {
	raw, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStore, "keyring get %s: %v", key, err)
	}
	var rec connections.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStore, "decode %s: %v", key, err)
	}
	return &rec, nil
}

func (k *KeyringRepo) Write(_ context.Context, key string, rec *connections.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrStore, "encode %s: %v", key, err)
	}
	if err := keyring.Set(k.service, key, string(data)); err != nil {
		return apperrors.Wrapf(apperrors.ErrStore, "keyring set %s: %v", key, err)
	}
	return nil
}

func (k *KeyringRepo) Delete(_ context.Context, key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return apperrors.Wrapf(apperrors.ErrStore, "keyring delete %s: %v", key, err)
	}
	return nil
}
