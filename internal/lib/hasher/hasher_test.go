package hasher_test

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"iam/internal/lib/hasher"
)

var fast = hasher.Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func TestHashVerify(t *testing.T) {
	h := hasher.New(fast)
	pass := gofakeit.Password(true, true, true, true, false, 16)

	hash, err := h.Hash(pass)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Verify(hash, pass))
	assert.False(t, h.Verify(hash, pass+"x"))
	assert.False(t, h.Verify(hash, ""))

	again, err := h.Hash(pass)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ")
}

func TestVerify_UsesParamsOfHash(t *testing.T) {
	hash, err := hasher.New(fast).Hash("P@ss1")
	require.NoError(t, err)

	assert.True(t, hasher.New(hasher.DefaultParams).Verify(hash, "P@ss1"))
}

func TestDefaultParams(t *testing.T) {
	hash, err := hasher.New(hasher.DefaultParams).Hash("admin123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$"))
}

func TestVerify_Bcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("P@ss1"), bcrypt.MinCost)
	require.NoError(t, err)

	h := hasher.New(fast)
	assert.True(t, h.Verify(string(legacy), "P@ss1"))
	assert.False(t, h.Verify(string(legacy), "P@ss2"))
}

func TestVerify_Malformed(t *testing.T) {
	h := hasher.New(fast)

	for _, hash := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		assert.False(t, h.Verify(hash, "P@ss1"), hash)
	}
}
