package authcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const tagSize = sha256.Size

var ErrInvalidSeal = errors.New("sealed value is invalid")

// Sealer makes tamper-evident strings: BASE64URL(HMAC-SHA256(purpose || payload) || payload).
// Purpose separates values sealed under the same key for different uses.
type Sealer struct {
	key     []byte
	purpose string
}

// NewSealer creates new instance of Sealer
func NewSealer(key []byte, purpose string) *Sealer {
	return &Sealer{key: key, purpose: purpose}
}

// Seal returns sealed form of payload
func (s *Sealer) Seal(payload []byte) string {
	buf := make([]byte, 0, tagSize+len(payload))
	buf = append(buf, s.tag(payload)...)
	buf = append(buf, payload...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Open checks the tag of a sealed string and returns its payload and tag
func (s *Sealer) Open(sealed string) (payload []byte, tag []byte, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) <= tagSize {
		return nil, nil, ErrInvalidSeal
	}
	tag, payload = raw[:tagSize], raw[tagSize:]
	if !hmac.Equal(tag, s.tag(payload)) {
		return nil, nil, ErrInvalidSeal
	}
	return payload, tag, nil
}

func (s *Sealer) tag(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(s.purpose))
	mac.Write(payload)
	return mac.Sum(nil)
}
