package models

import "time"

// GrantKey identifies the single consent row of an identity towards a tenant
type GrantKey struct {
	TenantID   int32
	IdentityID int64
}

// Grant is the current consent given by an identity to a tenant
type Grant struct {
	TenantID       int32     `json:"tenant_id" db:"tenant_id"`
	IdentityID     int64     `json:"identity_id" db:"identity_id"`
	ApprovedScopes []string  `json:"approved_scopes" db:"approved_scopes"`
	IssuedAt       time.Time `json:"issued_at" db:"issuance_date_time"`
}

// Key returns the grant's primary key
func (g Grant) Key() GrantKey {
	return GrantKey{TenantID: g.TenantID, IdentityID: g.IdentityID}
}
