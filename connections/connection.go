package connections

import (
	"context"
	"time"

	"github.com/jrsteele09/go-delegated-auth/internal/errors"
)

// Kind names the resource a delegated connection grants access to.
type Kind string

const (
	KindPartnerCenter Kind = "partnerCenter"
	KindGDAP          Kind = "gdap"
	KindAzure         Kind = "azure"
)

// Kinds lists every connection kind in display order.
func Kinds() []Kind {
	return []Kind{KindPartnerCenter, KindGDAP, KindAzure}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Wrapf(errors.ErrBadRequest, "unknown connection kind %q", s)
}

// Connection is the stored delegated token pair for one session and kind.
type Connection struct {
	Connected         bool
	ConnectedAt       time.Time
	RefreshToken      string
	AccessToken       string
	AccessTokenClaims map[string]any
	IsPublicClient    bool
	LastRefreshedAt   time.Time
}

// Usable reports whether the connection can yield a bearer token, either directly
// or through a refresh.
func (c *Connection) Usable() bool {
	return c != nil && c.RefreshToken != ""
}

// Pending is the one in-flight authorization request for a session.
type Pending struct {
	Kind         Kind
	State        string
	CodeVerifier string
}

// Record is everything stored for one session.
type Record struct {
	Pending     *Pending
	Connections map[Kind]*Connection
}

func NewRecord() *Record {
	return &Record{Connections: map[Kind]*Connection{}}
}

func (r *Record) Connection(k Kind) *Connection {
	if r == nil || r.Connections == nil {
		return nil
	}
	return r.Connections[k]
}

func (r *Record) SetConnection(k Kind, c *Connection) {
	if r.Connections == nil {
		r.Connections = map[Kind]*Connection{}
	}
	r.Connections[k] = c
}

func (r *Record) ClearConnection(k Kind) {
	delete(r.Connections, k)
}

// Empty reports whether the record holds nothing worth storing.
func (r *Record) Empty() bool {
	return r == nil || (r.Pending == nil && len(r.Connections) == 0)
}

// Clone returns a deep copy so callers can mutate without aliasing a cached record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := NewRecord()
	if r.Pending != nil {
		p := *r.Pending
		out.Pending = &p
	}
	for k, c := range r.Connections {
		if c == nil {
			continue
		}
		cp := *c
		if c.AccessTokenClaims != nil {
			cp.AccessTokenClaims = make(map[string]any, len(c.AccessTokenClaims))
			for ck, cv := range c.AccessTokenClaims {
				cp.AccessTokenClaims[ck] = cv
			}
		}
		out.Connections[k] = &cp
	}
	return out
}

// Key returns the store key for a session.
func Key(sessionID string) string {
	return "pc:session:" + sessionID
}

// Repo persists session records. Read returns nil, nil on a miss and Delete of a
// missing key succeeds. Writers for the same key race; the last write wins unless
// the caller serialises access.
type Repo interface {
	Read(ctx context.Context, key string) (*Record, error)
	Write(ctx context.Context, key string, rec *Record) error
	Delete(ctx context.Context, key string) error
}
