package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"iam/internal/domain/models"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 3 * time.Hour
	headerKeyID       = "kid"
)

var (
	ErrUnknownKey   = errors.New("token is signed by an unknown key")
	ErrBadSignature = errors.New("token signature is invalid")
	ErrExpired      = errors.New("token is expired")
	ErrMalformed    = errors.New("token is malformed")
)

// DefaultRoles are put into access tokens issued without explicit roles
var DefaultRoles = []string{"USER"}

// KeyProvider gives signing and verification keys of a rotating pool
type KeyProvider interface {
	SigningKey() (*models.SigningKeyPair, error)
	VerificationKey(keyID string) (*models.SigningKeyPair, error)
}

// Options of the token issuer
type Options struct {
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Issuer signs and validates access and refresh tokens
type Issuer struct {
	keys       KeyProvider
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewIssuer creates new instance of Issuer
func NewIssuer(keys KeyProvider, opts Options) *Issuer {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Issuer{
		keys:       keys,
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg(), jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(opts.Now),
		),
	}
}

// AccessTTL returns access token's lifetime
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccessToken creates access token of subject for specified tenant and scopes
//
// Returns signed token in compact form
func (i *Issuer) IssueAccessToken(tenantID string, subject string, scopes string, roles []string) (string, error) {
	if roles == nil {
		roles = DefaultRoles
	}
	now := i.now()

	return i.sign(&Claims{
		TenantID: tenantID,
		Scope:    scopes,
		Roles:    roles,
		UPN:      subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  i.audience,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	})
}

// IssueRefreshToken creates refresh token of subject for specified tenant and scopes
func (i *Issuer) IssueRefreshToken(tenantID string, subject string, scopes string) (string, error) {
	return i.sign(&Claims{
		TenantID: tenantID,
		Scope:    scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.refreshTTL)),
		},
	})
}

// Validate checks token's key, signature and expiry
func (i *Issuer) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header[headerKeyID].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		kp, err := i.keys.VerificationKey(kid)
		if err != nil {
			return nil, ErrUnknownKey
		}
		if t.Method.Alg() != kp.Algorithm {
			return nil, ErrBadSignature
		}
		return kp.PublicKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func (i *Issuer) sign(claims *Claims) (string, error) {
	kp, err := i.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("failed to get signing key: %w", err)
	}

	method := jwt.GetSigningMethod(kp.Algorithm)
	if method == nil {
		return "", fmt.Errorf("unsupported signing algorithm %q", kp.Algorithm)
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header[headerKeyID] = kp.KeyID

	signed, err := token.SignedString(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrMalformed),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMalformed
	case errors.Is(err, ErrUnknownKey):
		return ErrUnknownKey
	case errors.Is(err, ErrBadSignature),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
