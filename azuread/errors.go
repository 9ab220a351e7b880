package azuread

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-delegated-auth/internal/errors"
	"github.com/jrsteele09/go-delegated-auth/internal/utils"
)

// ErrorCode is the recognised Azure AD failure class. Raw AADSTS codes are mapped
// here and nowhere else.
type ErrorCode int

const (
	CodeNone ErrorCode = iota
	// CodePublicClient (AADSTS700025): the app is public; retry without the secret.
	CodePublicClient
	// CodeSpaCrossOriginRedemption (AADSTS9002327): SPA registrations only redeem codes
	// from a browser via CORS.
	CodeSpaCrossOriginRedemption
	// CodeInvalidGrant (AADSTS70008, AADSTS700082): the refresh token is expired or revoked.
	CodeInvalidGrant
	// CodeMFARequired (AADSTS50076, AADSTS50079): interactive MFA is needed.
	CodeMFARequired
)

func (c ErrorCode) String() string {
	switch c {
	case CodePublicClient:
		return "public_client"
	case CodeSpaCrossOriginRedemption:
		return "spa_cross_origin_redemption"
	case CodeInvalidGrant:
		return "invalid_grant"
	case CodeMFARequired:
		return "mfa_required"
	default:
		return "none"
	}
}

var aadstsCodes = map[int]ErrorCode{
	700025:  CodePublicClient,
	9002327: CodeSpaCrossOriginRedemption,
	70008:   CodeInvalidGrant,
	700082:  CodeInvalidGrant,
	50076:   CodeMFARequired,
	50079:   CodeMFARequired,
}

// TokenExchangeError is a non-2xx answer from the token endpoint.
type TokenExchangeError struct {
	Status      int
	Body        string
	Code        ErrorCode
	AzureError  string
	Description string
}

func (e *TokenExchangeError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = utils.Truncate(e.Body, 500)
	}
	if e.AzureError != "" {
		return fmt.Sprintf("token exchange failed (%d %s): %s", e.Status, e.AzureError, msg)
	}
	return fmt.Sprintf("token exchange failed (%d): %s", e.Status, msg)
}

func (e *TokenExchangeError) Unwrap() error {
	return errors.ErrTokenExchangeFailed
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	ErrorCodes  []int  `json:"error_codes"`
}

func newTokenExchangeError(status int, body []byte) *TokenExchangeError {
	e := &TokenExchangeError{Status: status, Body: string(body)}
	var parsed errorBody
	if json.Unmarshal(body, &parsed) == nil {
		e.AzureError = parsed.Error
		e.Description = parsed.Description
		for _, n := range parsed.ErrorCodes {
			if code, ok := aadstsCodes[n]; ok {
				e.Code = code
				return e
			}
		}
	}
	e.Code = Classify(string(body))
	return e
}

// Classify finds the first recognised AADSTS code in an error body.
func Classify(body string) ErrorCode {
	rest := body
	for {
		i := strings.Index(rest, "AADSTS")
		if i < 0 {
			return CodeNone
		}
		rest = rest[i+len("AADSTS"):]
		end := 0
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		if n, err := strconv.Atoi(rest[:end]); err == nil {
			if code, ok := aadstsCodes[n]; ok {
				return code
			}
		}
	}
}

// CodeOf returns the classification carried by err, CodeNone when err is not a
// token exchange failure.
func CodeOf(err error) ErrorCode {
	var te *TokenExchangeError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeNone
}
