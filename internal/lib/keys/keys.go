package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"iam/internal/domain/models"
)

const (
	AlgEdDSA = "EdDSA"
	AlgRS256 = "RS256"

	rsaKeyBits = 2048
)

var (
	ErrUnknownKey           = errors.New("unknown signing key")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Options tunes the key pool
type Options struct {
	// PoolSize is the number of signable keys kept in the pool
	PoolSize int
	// SignLifetime is how long a fresh key may sign
	SignLifetime time.Duration
	// TokenLifetime is the longest lifetime of a token signed by the pool,
	// keys stay verifiable for that long after they stop signing
	TokenLifetime time.Duration
	Algorithm     string
	Now           func() time.Time
}

// Manager owns the rotating pool of signing keys.
// The pool slice is never mutated in place: rotation builds a new slice and swaps it
// under the write lock, key records themselves are immutable.
type Manager struct {
	log           *slog.Logger
	mu            sync.RWMutex
	pool          []*models.SigningKeyPair
	poolSize      int
	signLifetime  time.Duration
	tokenLifetime time.Duration
	algorithm     string
	now           func() time.Time
}

// New creates a key manager and fills the pool up to the configured size
func New(log *slog.Logger, opts Options) (*Manager, error) {
	const op = "keys.New"

	if opts.PoolSize <= 0 {
		opts.PoolSize = 5
	}
	if opts.SignLifetime <= 0 {
		opts.SignLifetime = 24 * time.Hour
	}
	if opts.TokenLifetime <= 0 {
		opts.TokenLifetime = time.Hour
	}
	if opts.Algorithm == "" {
		opts.Algorithm = AlgEdDSA
	}
	if opts.Algorithm != AlgEdDSA && opts.Algorithm != AlgRS256 {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnsupportedAlgorithm, opts.Algorithm)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		log:           log,
		poolSize:      opts.PoolSize,
		signLifetime:  opts.SignLifetime,
		tokenLifetime: opts.TokenLifetime,
		algorithm:     opts.Algorithm,
		now:           opts.Now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.rotate(m.now()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

// Algorithm returns the JWS algorithm of every key in the pool
func (m *Manager) Algorithm() string {
	return m.algorithm
}

// SigningKey returns the newest key that may still sign, rotating the pool first
// when it holds purgeable keys or fewer signable keys than the target size
func (m *Manager) SigningKey() (*models.SigningKeyPair, error) {
	const op = "keys.SigningKey"

	now := m.now()

	m.mu.RLock()
	key, settled := m.newest(now)
	m.mu.RUnlock()
	if settled {
		return key, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key, err := m.rotate(now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}

// VerificationKey finds a key that may still verify, whether or not it can sign
func (m *Manager) VerificationKey(keyID string) (*models.SigningKeyPair, error) {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, k := range m.pool {
		if k.KeyID == keyID && k.CanVerify(now) {
			return k, nil
		}
	}
	return nil, ErrUnknownKey
}

// PublicKeys returns every verify-capable public key
func (m *Manager) PublicKeys() []models.PublicKey {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make([]models.PublicKey, 0, len(m.pool))
	for _, k := range m.pool {
		if !k.CanVerify(now) {
			continue
		}
		res = append(res, models.PublicKey{KeyID: k.KeyID, Algorithm: k.Algorithm, Key: k.PublicKey})
	}
	return res
}

// newest must be called with at least the read lock held.
// settled is false when the pool needs a rotation.
func (m *Manager) newest(now time.Time) (key *models.SigningKeyPair, settled bool) {
	signable := 0
	settled = true
	for _, k := range m.pool {
		if !k.CanVerify(now) {
			settled = false
			continue
		}
		if !k.CanSign(now) {
			continue
		}
		signable++
		if key == nil || !k.CreatedAt.Before(key.CreatedAt) {
			key = k
		}
	}
	return key, settled && signable >= m.poolSize
}

// rotate must be called with the write lock held
func (m *Manager) rotate(now time.Time) (*models.SigningKeyPair, error) {
	next := make([]*models.SigningKeyPair, 0, len(m.pool)+m.poolSize)
	signable, purged := 0, 0
	for _, k := range m.pool {
		if !k.CanVerify(now) {
			purged++
			continue
		}
		if k.CanSign(now) {
			signable++
		}
		next = append(next, k)
	}

	generated := 0
	for ; signable < m.poolSize; signable++ {
		k, err := m.generate(now)
		if err != nil {
			return nil, err
		}
		next = append(next, k)
		generated++
	}

	m.pool = next
	if purged > 0 || generated > 0 {
		m.log.Debug("signing key pool rotated",
			slog.Int("purged", purged),
			slog.Int("generated", generated),
			slog.Int("size", len(next)),
		)
	}

	key, _ := m.newest(now)
	return key, nil
}

func (m *Manager) generate(now time.Time) (*models.SigningKeyPair, error) {
	var (
		pub  crypto.PublicKey
		priv crypto.Signer
	)
	switch m.algorithm {
	case AlgEdDSA:
		p, s, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		pub, priv = p, s
	case AlgRS256:
		s, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa key: %w", err)
		}
		pub, priv = &s.PublicKey, s
	default:
		return nil, ErrUnsupportedAlgorithm
	}

	signExpiry := now.Add(m.signLifetime)
	return &models.SigningKeyPair{
		KeyID:        uuid.NewString(),
		Algorithm:    m.algorithm,
		PublicKey:    pub,
		PrivateKey:   priv,
		CreatedAt:    now,
		SignExpiry:   signExpiry,
		VerifyExpiry: signExpiry.Add(m.tokenLifetime),
	}, nil
}
