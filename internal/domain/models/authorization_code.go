package models

import "time"

// AuthorizationCode is the logical content of a stateless authorization code.
// It is never stored, the wire form carries it together with its integrity tag.
type AuthorizationCode struct {
	ClientID         string
	IdentityUsername string
	Scope            string
	ExpiresAt        time.Time
	RedirectURI      string
	CodeChallenge    string
}
