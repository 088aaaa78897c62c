package protected

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"

	"iam/internal/config"
	"iam/internal/lib/extensions"
)

const (
	codeSecretKey   = "code_secret"
	cookieSecretKey = "cookie_secret"
)

var ErrSecretMissing = errors.New("secret is missing in vault")

// Vault is a client instance to Hashicorp Vault secure storage for storing secrets
type Vault struct {
	Client *vault.Client
	conf   config.VaultConfig
}

// Secrets are the HMAC keys guarding authorization codes and the login cookie
type Secrets struct {
	CodeSecret   string
	CookieSecret string
}

// NewVaultClient creates new instance of Vault client authenticated with the static token if one is set
func NewVaultClient(conf config.VaultConfig) (*Vault, error) {
	const op = "storage.protected.NewVaultClient"

	client, err := vault.New(
		vault.WithAddress(conf.Address),
		vault.WithRequestTimeout(conf.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: error while creating new vault client instance: %w", op, err)
	}
	if conf.Token != "" {
		if err = client.SetToken(conf.Token); err != nil {
			return nil, fmt.Errorf("%s: error while setting token: %w", op, err)
		}
	}
	return &Vault{Client: client, conf: conf}, nil
}

// AuthUser authenticates the service as Vault AppRole client
func (v *Vault) AuthUser(ctx context.Context) error {
	const op = "storage.protected.AuthUser"

	roleID, err := extensions.GetTextFromFile(v.conf.RoleIDFile)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	secretID, err := extensions.GetTextFromFile(v.conf.SecretIDFile)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := v.Client.Auth.AppRoleLogin(
		ctx,
		schema.AppRoleLoginRequest{
			RoleId:   roleID,
			SecretId: secretID,
		})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.Auth == nil {
		return fmt.Errorf("%s: empty auth response", op)
	}
	if err = v.Client.SetToken(resp.Auth.ClientToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Secrets reads HMAC keys from the kv v2 secret engine
func (v *Vault) Secrets(ctx context.Context) (Secrets, error) {
	const op = "storage.protected.Secrets"

	resp, err := v.Client.Secrets.KvV2Read(ctx, v.conf.SecretPath, vault.WithMountPath(v.conf.MountPath))
	if err != nil {
		return Secrets{}, fmt.Errorf("%s: %w", op, err)
	}

	data := resp.Data.Data
	secrets := Secrets{}
	if secrets.CodeSecret, err = stringValue(data, codeSecretKey); err != nil {
		return Secrets{}, fmt.Errorf("%s: %w", op, err)
	}
	if secrets.CookieSecret, err = stringValue(data, cookieSecretKey); err != nil {
		return Secrets{}, fmt.Errorf("%s: %w", op, err)
	}
	return secrets, nil
}

func stringValue(data map[string]interface{}, key string) (string, error) {
	value, ok := data[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretMissing, key)
	}
	return value, nil
}
