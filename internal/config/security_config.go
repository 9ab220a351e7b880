package config

import "time"

type SecurityConfig interface {
	GetSessionMaxAge() time.Duration
	GetTokenExpirySkew() time.Duration
	GetLockTTL() time.Duration
}

type Security struct {
	v values
}

var _ SecurityConfig = Security{}

func (s Security) GetSessionMaxAge() time.Duration {
	if s.v.SessionMaxAge <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.v.SessionMaxAge
}

// GetTokenExpirySkew is the tolerance applied when deciding an access token has expired.
func (s Security) GetTokenExpirySkew() time.Duration {
	if s.v.TokenExpirySkew < 0 {
		return 0
	}
	return s.v.TokenExpirySkew
}

// GetLockTTL bounds how long a crashed holder can block a session. It must outlive
// one token endpoint round trip.
func (s Security) GetLockTTL() time.Duration {
	if s.v.LockTTL <= 0 {
		return 45 * time.Second
	}
	return s.v.LockTTL
}
