package models

import (
	"crypto"
	"time"
)

// SigningKeyPair is an asymmetric key pair of the rotating signing pool.
// Records are immutable once created.
type SigningKeyPair struct {
	KeyID        string
	Algorithm    string
	PublicKey    crypto.PublicKey
	PrivateKey   crypto.Signer
	CreatedAt    time.Time
	SignExpiry   time.Time
	VerifyExpiry time.Time
}

// CanSign reports whether new tokens may be signed with the pair at t
func (k *SigningKeyPair) CanSign(t time.Time) bool {
	return t.Before(k.SignExpiry)
}

// CanVerify reports whether tokens signed with the pair may still be verified at t
func (k *SigningKeyPair) CanVerify(t time.Time) bool {
	return t.Before(k.VerifyExpiry)
}

// PublicKey is the exported part of a signing key pair
type PublicKey struct {
	KeyID     string
	Algorithm string
	Key       crypto.PublicKey
}
