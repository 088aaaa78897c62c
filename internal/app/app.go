package app

import (
	"context"
	"fmt"
	"log/slog"

	grpcapp "iam/internal/app/grpc"
	httpapp "iam/internal/app/http"
	"iam/internal/config"
	"iam/internal/domain/models"
	httpserver "iam/internal/http"
	httpauth "iam/internal/http/auth"
	"iam/internal/http/middleware"
	"iam/internal/lib/authcode"
	"iam/internal/lib/hasher"
	"iam/internal/lib/jwt"
	"iam/internal/lib/keys"
	"iam/internal/services/auth"
	"iam/internal/services/auth/interfaces"
	"iam/internal/services/grant"
	"iam/internal/storage/memory"
	"iam/internal/storage/postgres"
	"iam/internal/storage/redis"
)

// store is what a storage backend must provide
type store interface {
	SaveTenant(ctx context.Context, tenant models.Tenant) (int32, error)
	TenantByClientID(ctx context.Context, clientID string) (models.Tenant, error)
	TenantByID(ctx context.Context, id int32) (models.Tenant, error)
	SaveIdentity(ctx context.Context, identity models.Identity) (int64, error)
	IdentityByUsername(ctx context.Context, username string) (models.Identity, error)
	IdentityByID(ctx context.Context, id int64) (models.Identity, error)
	SaveGrant(ctx context.Context, grant models.Grant) error
	Grant(ctx context.Context, key models.GrantKey) (models.Grant, error)
	DeleteGrant(ctx context.Context, key models.GrantKey) error
}

type App struct {
	HTTPSrv *httpapp.App
	GRPCSrv *grpcapp.App

	log     *slog.Logger
	storage store
	closers []func()
}

// New builds every component once and wires them together
func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	a := &App{log: log}

	if cfg.StoragePath == "" {
		log.Warn("storage path is empty, using in-memory storage")
		a.storage = memory.New()
	} else {
		pg, err := postgres.New(ctx, cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, pg.Close)
		a.storage = pg
	}

	pwHasher := hasher.New(hasher.DefaultParams)
	if cfg.Seed {
		if err := seed(ctx, log, a.storage, pwHasher); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s, err := loadSecrets(ctx, log, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	keyManager, err := keys.New(log, keys.Options{
		PoolSize:      cfg.Keys.PoolSize,
		SignLifetime:  cfg.Keys.SignLifetime,
		TokenLifetime: max(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Algorithm:     cfg.Keys.Algorithm,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens := jwt.NewIssuer(keyManager, jwt.Options{
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	registry, err := a.codeRegistry(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	grantService := grant.New(log, a.storage, a.storage, a.storage)
	authService := auth.New(
		log,
		a.storage,
		a.storage,
		a.storage,
		grantService,
		authcode.New(s.code, cfg.AuthorizationCodeTTL, nil),
		registry,
		tokens,
		pwHasher,
		cfg.LoginTTL,
		cfg.DefaultRoles,
	)

	opts := httpauth.Options{CookieSecret: s.cookie, SecureCookies: cfg.HTTP.SecureCookies}
	if cfg.RateLimit.RPS > 0 {
		limiter := middleware.NewRateLimiter(log, cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		a.closers = append(a.closers, limiter.Stop)
		opts.Limiter = limiter.Handler()
	}

	router := httpserver.NewRouter(log, authService, keyManager, opts)
	a.HTTPSrv = httpapp.New(log, cfg.HTTP, router)
	a.GRPCSrv = grpcapp.New(log, cfg.GRPC.Port, cfg.GRPC.Timeout)

	return a, nil
}

// codeRegistry picks the consumed-code registry, nil when replay protection is off
func (a *App) codeRegistry(ctx context.Context, cfg *config.Config) (interfaces.CodeRegistry, error) {
	if !cfg.ReplayGuard {
		return nil, nil
	}
	if !cfg.Redis.Enabled {
		return memory.NewCodeRegistry(nil), nil
	}

	cache, err := redis.NewCache(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := cache.Close(); err != nil {
			a.log.Error("failed to close redis client", slog.String("error", err.Error()))
		}
	})
	return cache, nil
}

// Stop shuts servers down and releases storage connections
func (a *App) Stop(ctx context.Context) {
	a.HTTPSrv.Stop(ctx)
	a.GRPCSrv.Stop()
	a.close()
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
