package interfaces

import (
	"context"
	"time"

	"iam/internal/domain/models"
	"iam/internal/lib/jwt"
)

type TenantProvider interface {
	TenantByClientID(ctx context.Context, clientID string) (models.Tenant, error)
}

type IdentityProvider interface {
	IdentityByUsername(ctx context.Context, username string) (models.Identity, error)
}

type IdentityStorage interface {
	SaveIdentity(ctx context.Context, identity models.Identity) (id int64, err error)
}

// GrantManager records and checks consent of identities towards tenants
type GrantManager interface {
	IssueGrant(ctx context.Context, tenantID int32, identityID int64, scopes string) (models.Grant, error)
	CheckGrant(ctx context.Context, tenantID int32, identityID int64, required string) (bool, error)
}

// CodeCodec mints and redeems stateless authorization codes
type CodeCodec interface {
	Encode(code models.AuthorizationCode, challenge string) (string, error)
	Decode(code string, verifier string) (*models.AuthorizationCode, error)
}

// CodeRegistry remembers redeemed codes, Consume fails with storage.ErrCodeConsumed on reuse
type CodeRegistry interface {
	Consume(ctx context.Context, fingerprint string, ttl time.Duration) error
}

// TokenProvider issues and validates signed tokens
type TokenProvider interface {
	IssueAccessToken(tenantID string, subject string, scopes string, roles []string) (string, error)
	IssueRefreshToken(tenantID string, subject string, scopes string) (string, error)
	Validate(token string) (*jwt.Claims, error)
	AccessTTL() time.Duration
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}
