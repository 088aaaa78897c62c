package models

import "time"

// PendingAuthorization is the /authorize context kept in the browser between
// rendering the login form and receiving the credentials
type PendingAuthorization struct {
	ClientID      string    `json:"client_id"`
	RedirectURI   string    `json:"redirect_uri"`
	Scope         string    `json:"scope"`
	CodeChallenge string    `json:"code_challenge,omitempty"`
	State         string    `json:"state,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}
