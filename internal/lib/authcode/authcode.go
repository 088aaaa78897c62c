package authcode

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iam/internal/domain/models"
	"iam/internal/lib/pkce"
)

const (
	DefaultTTL = 2 * time.Minute
	purpose    = "authorization_code"
)

var (
	ErrInvalidCode  = errors.New("authorization code is invalid")
	ErrExpired      = errors.New("authorization code is expired")
	ErrPKCEMismatch = errors.New("code verifier does not match code challenge")
)

// payload is the canonical serialization of an authorization code
type payload struct {
	ClientID      string `json:"cid"`
	Subject       string `json:"sub"`
	Scope         string `json:"scp"`
	ExpiresAt     int64  `json:"exp"`
	RedirectURI   string `json:"uri"`
	CodeChallenge string `json:"cc,omitempty"`
}

// Codec encodes and decodes self-contained authorization codes
type Codec struct {
	sealer *Sealer
	ttl    time.Duration
	now    func() time.Time
}

// New creates new instance of Codec, secret must be kept by the server only
func New(secret []byte, ttl time.Duration, now func() time.Time) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{sealer: NewSealer(secret, purpose), ttl: ttl, now: now}
}

// TTL returns the lifetime of codes minted by the codec
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode mints a code for ctx bound to challenge when it is not empty.
// ExpiresAt of ctx is ignored, the code expires TTL from now.
func (c *Codec) Encode(ctx models.AuthorizationCode, challenge string) (string, error) {
	raw, err := json.Marshal(payload{
		ClientID:      ctx.ClientID,
		Subject:       ctx.IdentityUsername,
		Scope:         ctx.Scope,
		ExpiresAt:     c.now().Add(c.ttl).Unix(),
		RedirectURI:   ctx.RedirectURI,
		CodeChallenge: challenge,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize authorization code: %w", err)
	}
	return c.sealer.Seal(raw), nil
}

// Decode verifies the code and, when it carries a challenge, the PKCE verifier
func (c *Codec) Decode(code string, verifier string) (*models.AuthorizationCode, error) {
	raw, _, err := c.sealer.Open(code)
	if err != nil {
		return nil, ErrInvalidCode
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrInvalidCode
	}

	expiresAt := time.Unix(p.ExpiresAt, 0).UTC()
	if !c.now().Before(expiresAt) {
		return nil, ErrExpired
	}

	if p.CodeChallenge != "" && !pkce.VerifyS256(verifier, p.CodeChallenge) {
		return nil, ErrPKCEMismatch
	}

	return &models.AuthorizationCode{
		ClientID:         p.ClientID,
		IdentityUsername: p.Subject,
		Scope:            p.Scope,
		ExpiresAt:        expiresAt,
		RedirectURI:      p.RedirectURI,
		CodeChallenge:    p.CodeChallenge,
	}, nil
}

// Fingerprint returns the integrity tag of a code, empty for undecodable input.
// Distinct codes have distinct fingerprints.
func Fingerprint(code string) string {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil || len(raw) <= tagSize {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw[:tagSize])
}
