package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

// MethodS256 is the only challenge method issued.
const MethodS256 = "S256"

const verifierBytes = 32

// Pair is a PKCE verifier with its derived challenge.
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// CreatePair draws a verifier from the CSPRNG and derives its S256 challenge.
func CreatePair() (Pair, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return Pair{}, fmt.Errorf("pkce: read random: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(b)
	return Pair{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    MethodS256,
	}, nil
}

// Verify reports whether the pair's challenge was derived from its verifier and the
// verifier length is within RFC 7636 bounds.
func Verify(p Pair) bool {
	if len(p.Verifier) < 43 || len(p.Verifier) > 128 || p.Method != MethodS256 {
		return false
	}
	return oauth2.S256ChallengeFromVerifier(p.Verifier) == p.Challenge
}

// AuthCodeOptions returns the authorize URL parameters for the pair's challenge.
func (p Pair) AuthCodeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", p.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", p.Method),
	}
}
