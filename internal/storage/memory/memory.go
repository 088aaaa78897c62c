package memory

import (
	"context"
	"slices"
	"sync"

	"iam/internal/domain/models"
	"iam/internal/storage"
)

// Storage keeps tenants, identities and grants in process memory.
// It mirrors the constraints of the postgres schema: unique client ids and usernames,
// grants referencing existing tenants and identities.
type Storage struct {
	mu             sync.RWMutex
	tenants        map[int32]models.Tenant
	tenantIDs      map[string]int32
	identities     map[int64]models.Identity
	identityIDs    map[string]int64
	grants         map[models.GrantKey]models.Grant
	nextTenantID   int32
	nextIdentityID int64
}

// New creates an empty in-memory storage
func New() *Storage {
	return &Storage{
		tenants:     make(map[int32]models.Tenant),
		tenantIDs:   make(map[string]int32),
		identities:  make(map[int64]models.Identity),
		identityIDs: make(map[string]int64),
		grants:      make(map[models.GrantKey]models.Grant),
	}
}

// SaveTenant registers a tenant and returns its id
func (s *Storage) SaveTenant(_ context.Context, tenant models.Tenant) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenantIDs[tenant.ClientID]; ok {
		return 0, storage.ErrTenantExists
	}
	s.nextTenantID++
	tenant.ID = s.nextTenantID
	s.tenants[tenant.ID] = tenant
	s.tenantIDs[tenant.ClientID] = tenant.ID
	return tenant.ID, nil
}

// TenantByClientID searches tenant by its OAuth client id
func (s *Storage) TenantByClientID(_ context.Context, clientID string) (models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tenantIDs[clientID]
	if !ok {
		return models.Tenant{}, storage.ErrTenantNotFound
	}
	return s.tenants[id], nil
}

// TenantByID searches tenant by its id
func (s *Storage) TenantByID(_ context.Context, id int32) (models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return models.Tenant{}, storage.ErrTenantNotFound
	}
	return tenant, nil
}

// SaveIdentity saves identity and returns its id
func (s *Storage) SaveIdentity(_ context.Context, identity models.Identity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identityIDs[identity.Username]; ok {
		return 0, storage.ErrIdentityExists
	}
	s.nextIdentityID++
	identity.ID = s.nextIdentityID
	s.identities[identity.ID] = identity
	s.identityIDs[identity.Username] = identity.ID
	return identity.ID, nil
}

// IdentityByUsername searches identity by username
func (s *Storage) IdentityByUsername(_ context.Context, username string) (models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identityIDs[username]
	if !ok {
		return models.Identity{}, storage.ErrIdentityNotFound
	}
	return s.identities[id], nil
}

// IdentityByID searches identity by its id
func (s *Storage) IdentityByID(_ context.Context, id int64) (models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return models.Identity{}, storage.ErrIdentityNotFound
	}
	return identity, nil
}

// SaveGrant inserts the grant or replaces the existing one of the same key
func (s *Storage) SaveGrant(_ context.Context, grant models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[grant.TenantID]; !ok {
		return storage.ErrTenantNotFound
	}
	if _, ok := s.identities[grant.IdentityID]; !ok {
		return storage.ErrIdentityNotFound
	}
	grant.ApprovedScopes = slices.Clone(grant.ApprovedScopes)
	s.grants[grant.Key()] = grant
	return nil
}

// Grant returns grant by its key
func (s *Storage) Grant(_ context.Context, key models.GrantKey) (models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[key]
	if !ok {
		return models.Grant{}, storage.ErrGrantNotFound
	}
	grant.ApprovedScopes = slices.Clone(grant.ApprovedScopes)
	return grant, nil
}

// DeleteGrant removes grant if present
func (s *Storage) DeleteGrant(_ context.Context, key models.GrantKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, key)
	return nil
}

// GrantCount returns the number of stored grants
func (s *Storage) GrantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.grants)
}
