package config

import "strings"

// StoreKind selects the token store backend.
type StoreKind string

const (
	StoreKindFile    StoreKind = "file"
	StoreKindMemory  StoreKind = "memory"
	StoreKindKV      StoreKind = "kv"
	StoreKindRedis   StoreKind = "redis"
	StoreKindKeyring StoreKind = "keyring"
)

type StoreConfig interface {
	GetTokenStoreKind() StoreKind
	GetTokenStorePath() string
	GetKVRestURL() string
	GetKVRestToken() string
	GetRedisURL() string
	GetTokenEncryptionKey() string
}

type Store struct {
	v values
}

var _ StoreConfig = Store{}

func (s Store) GetTokenStoreKind() StoreKind {
	kind := StoreKind(strings.ToLower(strings.TrimSpace(s.v.TokenStoreKind)))
	if kind == "" {
		return StoreKindFile
	}
	return kind
}

func (s Store) GetTokenStorePath() string {
	if s.v.TokenStorePath == "" {
		return ".partner-center-token.json"
	}
	return s.v.TokenStorePath
}

func (s Store) GetKVRestURL() string {
	return strings.TrimRight(s.v.KVRestURL, "/")
}

func (s Store) GetKVRestToken() string {
	return s.v.KVRestToken
}

func (s Store) GetRedisURL() string {
	return s.v.RedisURL
}

// GetTokenEncryptionKey returns the base64 key for at-rest record encryption, empty when disabled.
func (s Store) GetTokenEncryptionKey() string {
	return s.v.TokenEncryptionKey
}
