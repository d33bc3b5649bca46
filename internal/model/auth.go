package model

import "errors"

// TokenPair is the response to login, register and refresh calls.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds until the access token expires
}

// RefreshRequest is the request body for rotating tokens.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Error codes surfaced in 401 responses so clients can distinguish
// an expired access token (refreshable) from an invalid one.
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

var (
	// ErrTokenExpired is returned when a token's expiry has passed
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for malformed or badly signed tokens
	ErrTokenInvalid = errors.New("invalid token")
)
