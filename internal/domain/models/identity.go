package models

// Identity is an end user able to log in and grant consent to tenants
type Identity struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	PassHash string `json:"-" db:"password"`
	// ProvidedScopes is a space-separated list of scopes the identity is allowed to grant
	ProvidedScopes string `json:"provided_scopes" db:"provided_scopes"`
}
