package azuread

import (
	"slices"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
)

// Claims is an access token payload decoded WITHOUT signature verification. It
// is only used to read expiry and authentication method; the token itself is
// forwarded opaque and verified by the resource server.
type Claims map[string]any

func DecodeClaims(token string) (Claims, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(token, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "decode access token: %v", err)
	}
	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "unexpected claims type")
	}
	return Claims(mc), nil
}

// ExpiresAt returns the exp claim, false when absent or malformed.
func (c Claims) ExpiresAt() (time.Time, bool) {
	exp, err := jwtlib.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token is expired at now, allowing skew. A token
// without an exp claim counts as expired.
func (c Claims) Expired(now time.Time, skew time.Duration) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return true
	}
	return !now.Add(skew).Before(exp)
}

// HasMFA reports whether the amr claim lists "mfa".
func (c Claims) HasMFA() bool {
	switch amr := c["amr"].(type) {
	case []any:
		return slices.Contains(utils.ToStringSlice(amr), "mfa")
	case []string:
		return slices.Contains(amr, "mfa")
	default:
		return false
	}
}
