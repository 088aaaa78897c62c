package pkce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"iam/internal/lib/pkce"
)

func TestChallengeS256_RFC7636Vector(t *testing.T) {
	// RFC 7636 appendix B
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, challenge, pkce.ChallengeS256(verifier))
	assert.True(t, pkce.VerifyS256(verifier, challenge))
	assert.False(t, pkce.VerifyS256(verifier+"x", challenge))
	assert.False(t, pkce.VerifyS256("", challenge))
	assert.False(t, pkce.VerifyS256(verifier, ""))
}

func TestSupportedMethod(t *testing.T) {
	assert.True(t, pkce.SupportedMethod(""))
	assert.True(t, pkce.SupportedMethod("S256"))
	assert.True(t, pkce.SupportedMethod("s256"))
	assert.False(t, pkce.SupportedMethod("plain"))
}
