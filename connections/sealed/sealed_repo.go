// Package sealed encrypts the token fields of session records before they reach
// the underlying store, using XChaCha20-Poly1305 with the store key as associated
// data so a sealed value cannot be replayed under another session.
package sealed

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/jrsteele09/go-delegated-auth/connections"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "sealed:v1:"

var _ connections.Repo = (*Repo)(nil)

type Repo struct {
	next connections.Repo
	aead cipher.AEAD
}

// New wraps next with a 32 byte key.
func New(next connections.Repo, key []byte) (*Repo, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "token encryption key: %v", err)
	}
	return &Repo{next: next, aead: aead}, nil
}

// ParseKey decodes a base64 (standard or URL alphabet) 32 byte key.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil && len(key) == chacha20poly1305.KeySize {
			return key, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrConfiguration, "TOKEN_ENCRYPTION_KEY must be %d base64 encoded bytes", chacha20poly1305.KeySize)
}

func (s *Repo) Read(ctx context.Context, key string) (*connections.Record, error) {
	rec, err := s.next.Read(ctx, key)
	if err != nil || rec == nil {
		return rec, err
	}
	if rec.Pending != nil {
		if rec.Pending.CodeVerifier, err = s.open(key, rec.Pending.CodeVerifier); err != nil {
			return nil, err
		}
	}
	for _, c := range rec.Connections {
		if c.RefreshToken, err = s.open(key, c.RefreshToken); err != nil {
			return nil, err
		}
		if c.AccessToken, err = s.open(key, c.AccessToken); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Repo) Write(ctx context.Context, key string, rec *connections.Record) error {
	out := rec.Clone()
	var err error
	if out.Pending != nil {
		if out.Pending.CodeVerifier, err = s.seal(key, out.Pending.CodeVerifier); err != nil {
			return err
		}
	}
	for _, c := range out.Connections {
		if c.RefreshToken, err = s.seal(key, c.RefreshToken); err != nil {
			return err
		}
		if c.AccessToken, err = s.seal(key, c.AccessToken); err != nil {
			return err
		}
	}
	return s.next.Write(ctx, key, out)
}

func (s *Repo) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}

func (s *Repo) seal(key, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrapf(errors.ErrStore, "seal: read nonce: %v", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(key))
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// open decrypts a sealed value. Values written before encryption was enabled are
// returned unchanged.
func (s *Repo) open(key, value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil || len(raw) < s.aead.NonceSize() {
		return "", errors.Wrapf(errors.ErrStore, "open %s: malformed sealed value", key)
	}
	plain, err := s.aead.Open(nil, raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():], []byte(key))
	if err != nil {
		return "", errors.Wrapf(errors.ErrStore, "open %s: %v", key, err)
	}
	return string(plain), nil
}
