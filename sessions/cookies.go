package sessions

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

type CookieOptions struct {
	Path     string
	MaxAge   time.Duration
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// CookieString serialises a Set-Cookie value. The value is URL-encoded so any
// string survives a round trip through ParseCookies.
func CookieString(name, value string, opts CookieOptions) string {
	c := &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     opts.Path,
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	return c.String()
}

// ParseCookies decodes a Cookie request header. Pairs that fail to decode keep
// their raw value; the first occurrence of a name wins.
func ParseCookies(header string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		value = strings.Trim(value, `"`)
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		out[name] = value
	}
	return out
}
