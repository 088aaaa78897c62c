package storage

import "errors"

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrTenantExists     = errors.New("tenant already exists")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrGrantNotFound    = errors.New("grant not found")
	ErrCodeConsumed     = errors.New("authorization code already consumed")
)
