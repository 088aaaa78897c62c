package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"iam/internal/domain/models"
	"iam/internal/storage"
)

type seedStorage interface {
	SaveTenant(ctx context.Context, tenant models.Tenant) (int32, error)
	SaveIdentity(ctx context.Context, identity models.Identity) (int64, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

type seedIdentity struct {
	username string
	password string
	scopes   string
}

var (
	seedIdentities = []seedIdentity{
		{username: "admin@recruiting.com", password: "admin123", scopes: "profile.read cv.read cv.share jobs.read jobs.write"},
	}
	seedTenants = []models.Tenant{
		{
			ClientID:       "recruiting-frontend",
			ClientSecret:   "secret123",
			RedirectURI:    "http://localhost:3000/callback",
			RequiredScopes: "profile.read",
			Name:           "Recruiting Frontend",
		},
		{
			ClientID:       "test-client",
			ClientSecret:   "test-secret",
			RedirectURI:    "http://localhost:8080/callback",
			RequiredScopes: "profile.read cv.read",
			Name:           "Test Client",
		},
	}
)

// seed inserts the demo identity and tenants, records that already exist are left untouched
func seed(ctx context.Context, log *slog.Logger, s seedStorage, hasher passwordHasher) error {
	const op = "app.seed"
	log = log.With(slog.String("op", op))

	for _, identity := range seedIdentities {
		passHash, err := hasher.Hash(identity.password)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		_, err = s.SaveIdentity(ctx, models.Identity{
			Username:       identity.username,
			PassHash:       passHash,
			ProvidedScopes: identity.scopes,
		})
		if err != nil && !errors.Is(err, storage.ErrIdentityExists) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err == nil {
			log.Info("identity seeded", slog.String("username", identity.username))
		}
	}

	for _, tenant := range seedTenants {
		_, err := s.SaveTenant(ctx, tenant)
		if err != nil && !errors.Is(err, storage.ErrTenantExists) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err == nil {
			log.Info("tenant seeded", slog.String("client_id", tenant.ClientID))
		}
	}
	return nil
}
