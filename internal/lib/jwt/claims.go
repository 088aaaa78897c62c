package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims of access and refresh tokens. Refresh tokens carry only
// subject, tenant, scope and expiry.
type Claims struct {
	TenantID string   `json:"tenant_id"`
	Scope    string   `json:"scope"`
	Roles    []string `json:"roles,omitempty"`
	UPN      string   `json:"upn,omitempty"`
	jwt.RegisteredClaims
}
