package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"iam/internal/domain/models"
	"iam/internal/lib/authcode"
	"iam/internal/lib/pkce"
	"iam/internal/services/auth/interfaces"
	"iam/internal/storage"
)

const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	ResponseTypeCode           = "code"
	TokenTypeBearer            = "Bearer"

	// DefaultProvidedScopes are the scopes a newly signed up identity may grant
	DefaultProvidedScopes = "profile.read cv.read cv.share"
	DefaultLoginTTL       = 10 * time.Minute
)

const unknownIdentityPassword = "unknown-identity"

// SupportedGrantTypes lists grant types accepted by the token endpoint
var SupportedGrantTypes = []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken}

// AuthorizeRequest holds the query of the authorization endpoint
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	State               string
}

// TokenRequest holds the form of the token endpoint
type TokenRequest struct {
	GrantType    string
	Code         string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

type Auth struct {
	log              *slog.Logger
	tenantProvider   interfaces.TenantProvider
	identityProvider interfaces.IdentityProvider
	identityStorage  interfaces.IdentityStorage
	grantManager     interfaces.GrantManager
	codeCodec        interfaces.CodeCodec
	codeRegistry     interfaces.CodeRegistry
	tokenProvider    interfaces.TokenProvider
	passwordHasher   interfaces.PasswordHasher
	loginTTL         time.Duration
	roles            []string
	unknownHash      string
	now              func() time.Time
}

// New returns a new instance of the Auth service.
// codeRegistry may be nil, authorization codes are then redeemable until they expire.
func New(
	log *slog.Logger,
	tenantProvider interfaces.TenantProvider,
	identityProvider interfaces.IdentityProvider,
	identityStorage interfaces.IdentityStorage,
	grantManager interfaces.GrantManager,
	codeCodec interfaces.CodeCodec,
	codeRegistry interfaces.CodeRegistry,
	tokenProvider interfaces.TokenProvider,
	passwordHasher interfaces.PasswordHasher,
	loginTTL time.Duration,
	roles []string,
) *Auth {
	if loginTTL <= 0 {
		loginTTL = DefaultLoginTTL
	}
	unknownHash, err := passwordHasher.Hash(unknownIdentityPassword)
	if err != nil {
		log.Warn("failed to hash the unknown identity password", slog.String("error", err.Error()))
	}
	return &Auth{
		log:              log,
		tenantProvider:   tenantProvider,
		identityProvider: identityProvider,
		identityStorage:  identityStorage,
		grantManager:     grantManager,
		codeCodec:        codeCodec,
		codeRegistry:     codeRegistry,
		tokenProvider:    tokenProvider,
		passwordHasher:   passwordHasher,
		loginTTL:         loginTTL,
		roles:            roles,
		unknownHash:      unknownHash,
		now:              time.Now,
	}
}

// LoginTTL returns how long a pending authorization waits for credentials
func (a *Auth) LoginTTL() time.Duration {
	return a.loginTTL
}

// Authorize validates an authorization request and returns the context awaiting login
func (a *Auth) Authorize(ctx context.Context, req AuthorizeRequest) (models.PendingAuthorization, error) {
	const op = "auth.Authorize"

	if req.ClientID == "" || req.RedirectURI == "" {
		return models.PendingAuthorization{}, describe(ErrInvalidRequest, "client_id and redirect_uri are required")
	}

	tenant, err := a.resolveClient(ctx, req.ClientID)
	if err != nil {
		return models.PendingAuthorization{}, fmt.Errorf("%s: %w", op, err)
	}

	if req.RedirectURI != tenant.RedirectURI {
		return models.PendingAuthorization{}, describe(ErrInvalidRequest, "redirect_uri is not registered for the client")
	}
	if req.ResponseType != ResponseTypeCode {
		return models.PendingAuthorization{}, describe(ErrUnsupportedResponseType, "only response_type=code is supported")
	}
	if req.CodeChallenge != "" && !pkce.SupportedMethod(req.CodeChallengeMethod) {
		return models.PendingAuthorization{}, describe(ErrInvalidRequest, "code_challenge_method must be S256")
	}

	scope := req.Scope
	if strings.TrimSpace(scope) == "" {
		scope = tenant.RequiredScopes
	}

	return models.PendingAuthorization{
		ClientID:      tenant.ClientID,
		RedirectURI:   req.RedirectURI,
		Scope:         scope,
		CodeChallenge: req.CodeChallenge,
		State:         req.State,
		ExpiresAt:     a.now().Add(a.loginTTL).UTC(),
	}, nil
}

// Login authenticates the identity, records its consent and returns the client redirect carrying the code
func (a *Auth) Login(ctx context.Context, pending models.PendingAuthorization, username string, password string) (string, error) {
	const op = "auth.Login"
	log := a.log.With(slog.String("op", op), slog.String("client_id", pending.ClientID))

	if !a.now().Before(pending.ExpiresAt) {
		return "", describe(ErrInvalidRequest, "authorization request has expired")
	}

	tenant, err := a.resolveClient(ctx, pending.ClientID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	identity, err := a.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("login rejected")
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err = a.grantManager.IssueGrant(ctx, tenant.ID, identity.ID, pending.Scope); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	code, err := a.codeCodec.Encode(models.AuthorizationCode{
		ClientID:         tenant.ClientID,
		IdentityUsername: identity.Username,
		Scope:            pending.Scope,
		RedirectURI:      pending.RedirectURI,
	}, pending.CodeChallenge)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	redirect, err := url.Parse(pending.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	query := redirect.Query()
	query.Set("code", code)
	if pending.State != "" {
		query.Set("state", pending.State)
	}
	redirect.RawQuery = query.Encode()

	log.Info("authorization code issued", slog.Int64("identity_id", identity.ID))
	return redirect.String(), nil
}

// Exchange serves the token endpoint for both supported grant types
func (a *Auth) Exchange(ctx context.Context, req TokenRequest) (models.TokenSet, error) {
	const op = "auth.Exchange"

	if req.GrantType != GrantTypeAuthorizationCode && req.GrantType != GrantTypeRefreshToken {
		return models.TokenSet{}, describe(ErrUnsupportedGrantType,
			"supported grant types: "+strings.Join(SupportedGrantTypes, ", "))
	}

	tenant, err := a.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
	}

	var tokens models.TokenSet
	if req.GrantType == GrantTypeAuthorizationCode {
		tokens, err = a.exchangeCode(ctx, tenant, req)
	} else {
		tokens, err = a.refresh(ctx, tenant, req.RefreshToken)
	}
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
	}
	return tokens, nil
}

func (a *Auth) exchangeCode(ctx context.Context, tenant models.Tenant, req TokenRequest) (models.TokenSet, error) {
	const op = "auth.exchangeCode"
	log := a.log.With(slog.String("op", op), slog.String("client_id", tenant.ClientID))

	if req.Code == "" {
		return models.TokenSet{}, describe(ErrInvalidRequest, "code is required")
	}

	code, err := a.codeCodec.Decode(req.Code, req.CodeVerifier)
	if err != nil {
		log.Info("authorization code rejected", slog.String("reason", err.Error()))
		return models.TokenSet{}, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
	}
	if code.ClientID != tenant.ClientID {
		return models.TokenSet{}, fmt.Errorf("%w: code was issued to another client", ErrInvalidGrant)
	}
	if req.RedirectURI != "" && req.RedirectURI != code.RedirectURI {
		return models.TokenSet{}, fmt.Errorf("%w: redirect_uri mismatch", ErrInvalidGrant)
	}

	if a.codeRegistry != nil {
		err = a.codeRegistry.Consume(ctx, authcode.Fingerprint(req.Code), code.ExpiresAt.Sub(a.now()))
		if err != nil {
			if errors.Is(err, storage.ErrCodeConsumed) {
				log.Warn("authorization code replayed")
				return models.TokenSet{}, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
			}
			return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	identity, err := a.grantedIdentity(ctx, tenant, code.IdentityUsername, code.Scope)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := a.tokenProvider.IssueRefreshToken(tenant.ClientID, identity.Username, code.Scope)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
	}
	return a.tokenSet(tenant, identity, code.Scope, refreshToken)
}

// refresh mints a new access and refresh pair, the presented refresh token stays valid until it expires
func (a *Auth) refresh(ctx context.Context, tenant models.Tenant, refreshToken string) (models.TokenSet, error) {
	const op = "auth.refresh"

	if refreshToken == "" {
		return models.TokenSet{}, describe(ErrInvalidRequest, "refresh_token is required")
	}

	claims, err := a.tokenProvider.Validate(refreshToken)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
	}
	// access tokens carry upn, refresh tokens never do
	if claims.UPN != "" {
		return models.TokenSet{}, fmt.Errorf("%w: not a refresh token", ErrInvalidGrant)
	}
	if claims.TenantID != tenant.ClientID {
		return models.TokenSet{}, fmt.Errorf("%w: token was issued to another client", ErrInvalidGrant)
	}

	identity, err := a.grantedIdentity(ctx, tenant, claims.Subject, claims.Scope)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
	}

	next, err := a.tokenProvider.IssueRefreshToken(tenant.ClientID, identity.Username, claims.Scope)
	if err != nil {
		return models.TokenSet{}, fmt.Errorf("%s: %w", op, err)
	}
	return a.tokenSet(tenant, identity, claims.Scope, next)
}

// grantedIdentity resolves the token subject and checks it still consents to scope
func (a *Auth) grantedIdentity(ctx context.Context, tenant models.Tenant, username string, scope string) (models.Identity, error) {
	identity, err := a.identityProvider.IdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			return models.Identity{}, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
		}
		return models.Identity{}, err
	}

	granted, err := a.grantManager.CheckGrant(ctx, tenant.ID, identity.ID, scope)
	if err != nil {
		return models.Identity{}, err
	}
	if !granted {
		return models.Identity{}, fmt.Errorf("%w: %w", ErrInvalidGrant, storage.ErrGrantNotFound)
	}
	return identity, nil
}

func (a *Auth) tokenSet(tenant models.Tenant, identity models.Identity, scope string, refreshToken string) (models.TokenSet, error) {
	accessToken, err := a.tokenProvider.IssueAccessToken(tenant.ClientID, identity.Username, scope, a.roles)
	if err != nil {
		return models.TokenSet{}, err
	}
	return models.TokenSet{
		TokenType:    TokenTypeBearer,
		AccessToken:  accessToken,
		ExpiresIn:    int64(a.tokenProvider.AccessTTL().Seconds()),
		Scope:        scope,
		RefreshToken: refreshToken,
	}, nil
}

// Register signs up a new identity with the default provided scopes
func (a *Auth) Register(ctx context.Context, username string, password string) (int64, error) {
	const op = "auth.Register"
	log := a.log.With(slog.String("op", op))

	if username == "" || password == "" {
		return 0, describe(ErrInvalidRequest, "username and password are required")
	}

	passHash, err := a.passwordHasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.identityStorage.SaveIdentity(ctx, models.Identity{
		Username:       username,
		PassHash:       passHash,
		ProvidedScopes: DefaultProvidedScopes,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("identity registered", slog.Int64("identity_id", id))
	return id, nil
}

// VerifyCredentials returns the identity when the password matches, ErrInvalidCredentials otherwise
func (a *Auth) VerifyCredentials(ctx context.Context, username string, password string) (models.Identity, error) {
	const op = "auth.VerifyCredentials"

	if username == "" || password == "" {
		return models.Identity{}, ErrInvalidCredentials
	}

	identity, err := a.identityProvider.IdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			// same hashing cost as a wrong password
			a.passwordHasher.Verify(a.unknownHash, password)
			return models.Identity{}, ErrInvalidCredentials
		}
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.passwordHasher.Verify(identity.PassHash, password) {
		return models.Identity{}, ErrInvalidCredentials
	}
	return identity, nil
}

// resolveClient is the guard of every step that names a client
func (a *Auth) resolveClient(ctx context.Context, clientID string) (models.Tenant, error) {
	tenant, err := a.tenantProvider.TenantByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrTenantNotFound) {
			return models.Tenant{}, describe(ErrInvalidClient, "unknown client")
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

// authenticateClient checks the client secret when one is supplied, public clients rely on PKCE
func (a *Auth) authenticateClient(ctx context.Context, clientID string, clientSecret string) (models.Tenant, error) {
	if clientID == "" {
		return models.Tenant{}, describe(ErrInvalidClient, "client_id is required")
	}

	tenant, err := a.resolveClient(ctx, clientID)
	if err != nil {
		return models.Tenant{}, err
	}

	if clientSecret != "" && subtle.ConstantTimeCompare([]byte(clientSecret), []byte(tenant.ClientSecret)) != 1 {
		return models.Tenant{}, describe(ErrInvalidClient, "client authentication failed")
	}
	return tenant, nil
}
