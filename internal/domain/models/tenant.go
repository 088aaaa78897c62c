package models

// Tenant is a registered OAuth client application
type Tenant struct {
	ID             int32  `json:"id" db:"id"`
	ClientID       string `json:"client_id" db:"client_id"`
	ClientSecret   string `json:"-" db:"client_secret"`
	RedirectURI    string `json:"redirect_uri" db:"redirect_uri"`
	RequiredScopes string `json:"required_scopes" db:"required_scopes"`
	Name           string `json:"name" db:"name"`
}
