package interfaces

import (
	"context"

	"iam/internal/domain/models"
)

type TenantProvider interface {
	TenantByID(ctx context.Context, id int32) (models.Tenant, error)
}

type IdentityProvider interface {
	IdentityByID(ctx context.Context, id int64) (models.Identity, error)
}

// GrantStorage keeps one consent row per tenant and identity
type GrantStorage interface {
	SaveGrant(ctx context.Context, grant models.Grant) error
	Grant(ctx context.Context, key models.GrantKey) (models.Grant, error)
	DeleteGrant(ctx context.Context, key models.GrantKey) error
}
