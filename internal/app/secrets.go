package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"iam/internal/config"
	"iam/internal/storage/protected"
)

const generatedSecretSize = 32

type secrets struct {
	code   []byte
	cookie []byte
}

// loadSecrets reads HMAC keys from Vault when enabled, from config otherwise.
// Missing keys are generated, codes and cookies then do not survive a restart.
func loadSecrets(ctx context.Context, log *slog.Logger, cfg *config.Config) (secrets, error) {
	const op = "app.loadSecrets"
	log = log.With(slog.String("op", op))

	code, cookie := cfg.Secrets.CodeSecret, cfg.Secrets.CookieSecret
	if cfg.Vault.Enabled {
		v, err := protected.NewVaultClient(cfg.Vault)
		if err != nil {
			return secrets{}, fmt.Errorf("%s: %w", op, err)
		}
		if cfg.Vault.RoleIDFile != "" {
			if err = v.AuthUser(ctx); err != nil {
				return secrets{}, fmt.Errorf("%s: %w", op, err)
			}
		}
		stored, err := v.Secrets(ctx)
		if err != nil {
			return secrets{}, fmt.Errorf("%s: %w", op, err)
		}
		code, cookie = stored.CodeSecret, stored.CookieSecret
		log.Info("secrets loaded from vault")
	}

	var s secrets
	var err error
	if s.code, err = secretOrRandom(log, "code_secret", code); err != nil {
		return secrets{}, fmt.Errorf("%s: %w", op, err)
	}
	if s.cookie, err = secretOrRandom(log, "cookie_secret", cookie); err != nil {
		return secrets{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func secretOrRandom(log *slog.Logger, name string, value string) ([]byte, error) {
	if value != "" {
		return []byte(value), nil
	}
	secret := make([]byte, generatedSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	log.Warn("secret is not configured, using a random one", slog.String("secret", name))
	return secret, nil
}
