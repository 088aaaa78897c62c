package grant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"iam/internal/domain/models"
	"iam/internal/services/grant/interfaces"
	"iam/internal/storage"
)

type Grant struct {
	log              *slog.Logger
	tenantProvider   interfaces.TenantProvider
	identityProvider interfaces.IdentityProvider
	grantStorage     interfaces.GrantStorage
	now              func() time.Time
}

// New returns a new instance of the Grant service
func New(
	log *slog.Logger,
	tenantProvider interfaces.TenantProvider,
	identityProvider interfaces.IdentityProvider,
	grantStorage interfaces.GrantStorage,
) *Grant {
	return &Grant{
		log:              log,
		tenantProvider:   tenantProvider,
		identityProvider: identityProvider,
		grantStorage:     grantStorage,
		now:              time.Now,
	}
}

// IssueGrant records consent of identity towards tenant for scopes, replacing any previous one.
// Throws storage.ErrTenantNotFound or storage.ErrIdentityNotFound when either side doesn't exist.
func (g *Grant) IssueGrant(ctx context.Context, tenantID int32, identityID int64, scopes string) (models.Grant, error) {
	const op = "grant.IssueGrant"
	log := g.log.With(slog.String("op", op))

	if _, err := g.tenantProvider.TenantByID(ctx, tenantID); err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := g.identityProvider.IdentityByID(ctx, identityID); err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	grant := models.Grant{
		TenantID:       tenantID,
		IdentityID:     identityID,
		ApprovedScopes: NormalizeScopes(scopes),
		IssuedAt:       g.now().UTC(),
	}
	if err := g.grantStorage.SaveGrant(ctx, grant); err != nil {
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("grant issued",
		slog.Int("tenant_id", int(tenantID)),
		slog.Int64("identity_id", identityID),
		slog.Int("scopes", len(grant.ApprovedScopes)),
	)
	return grant, nil
}

// RevokeGrant removes consent, revoking an absent grant succeeds
func (g *Grant) RevokeGrant(ctx context.Context, tenantID int32, identityID int64) error {
	const op = "grant.RevokeGrant"

	key := models.GrantKey{TenantID: tenantID, IdentityID: identityID}
	if err := g.grantStorage.DeleteGrant(ctx, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.log.With(slog.String("op", op)).Debug("grant revoked",
		slog.Int("tenant_id", int(tenantID)),
		slog.Int64("identity_id", identityID),
	)
	return nil
}

// CheckGrant reports whether identity approved every scope of required for tenant.
// Empty required only checks that a grant exists.
func (g *Grant) CheckGrant(ctx context.Context, tenantID int32, identityID int64, required string) (bool, error) {
	const op = "grant.CheckGrant"

	grant, err := g.grantStorage.Grant(ctx, models.GrantKey{TenantID: tenantID, IdentityID: identityID})
	if err != nil {
		if errors.Is(err, storage.ErrGrantNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, scope := range strings.Fields(required) {
		if !slices.Contains(grant.ApprovedScopes, scope) {
			return false, nil
		}
	}
	return true, nil
}

// NormalizeScopes splits a space-separated scope string dropping duplicates, order is preserved
func NormalizeScopes(scopes string) []string {
	fields := strings.Fields(scopes)
	result := make([]string, 0, len(fields))
	for _, scope := range fields {
		if !slices.Contains(result, scope) {
			result = append(result, scope)
		}
	}
	return result
}
