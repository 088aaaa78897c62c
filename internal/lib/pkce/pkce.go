package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// MethodS256 is the only code challenge method accepted by the server
const MethodS256 = "S256"

// ChallengeS256 derives code challenge from code verifier: BASE64URL(SHA256(verifier)) without padding
func ChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyS256 checks in constant time whether verifier matches the challenge
func VerifyS256(verifier string, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	calculated := ChallengeS256(verifier)
	return subtle.ConstantTimeCompare([]byte(calculated), []byte(challenge)) == 1
}

// SupportedMethod reports whether method is accepted, empty method defaults to S256
func SupportedMethod(method string) bool {
	return method == "" || strings.EqualFold(method, MethodS256)
}
