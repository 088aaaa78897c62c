package keys

import (
	"fmt"

	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"

	"iam/internal/domain/models"
)

// JWKS renders all verify-capable public keys as a JSON Web Key Set
func (m *Manager) JWKS() (jwk.Set, error) {
	const op = "keys.JWKS"

	set := jwk.NewSet()
	for _, pk := range m.PublicKeys() {
		key, err := toJWK(pk)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		set.Add(key)
	}
	return set, nil
}

// JWK renders a single verification key, ErrUnknownKey if it was rotated out
func (m *Manager) JWK(keyID string) (jwk.Key, error) {
	kp, err := m.VerificationKey(keyID)
	if err != nil {
		return nil, err
	}
	return toJWK(models.PublicKey{KeyID: kp.KeyID, Algorithm: kp.Algorithm, Key: kp.PublicKey})
}

func toJWK(pk models.PublicKey) (jwk.Key, error) {
	key, err := jwk.New(pk.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}

	_ = key.Set(jwk.KeyIDKey, pk.KeyID)
	_ = key.Set(jwk.AlgorithmKey, jwa.SignatureAlgorithm(pk.Algorithm))
	_ = key.Set(jwk.KeyUsageKey, jwk.ForSignature)
	return key, nil
}
