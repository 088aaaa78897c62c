package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"iam/internal/domain/models"
	"iam/internal/storage"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintGrantTenant = "issued_grants_tenant_id_fkey"
)

// Private config for building a connection string out of the environment
type config struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// Simple helper function to read an environment or return a default value
func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// Init initialize config instance
func (c *config) Init() {
	c.Host = getEnv("DB_HOST", "localhost")
	c.Port = getEnv("DB_PORT", "5432")
	c.Username = getEnv("DB_USER", "postgres")
	c.Password = getEnv("DB_PASS", "postgres")
	c.Database = getEnv("DB_NAME", "iam_db")
}

// Storage instance for processing sql queries
type Storage struct {
	dbPool *pgxpool.Pool
}

// New opens a connection pool. An empty storagePath falls back to the DB_* environment.
func New(ctx context.Context, storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	if storagePath == "" {
		conf := config{}
		conf.Init()
		storagePath = getConnString(conf)
	}

	dbPool, err := pgxpool.New(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{dbPool: dbPool}, nil
}

// Close ends database pool connection
func (s *Storage) Close() {
	s.dbPool.Close()
}

// getConnString Constructing database connection string
func getConnString(conf config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", conf.Username, conf.Password, conf.Host, conf.Port, conf.Database)
}

func pgErrorCode(err error) (string, string) {
	var pgxError *pgconn.PgError
	if errors.As(err, &pgxError) {
		return pgxError.Code, pgxError.ConstraintName
	}
	return "", ""
}

// SaveTenant saves tenant in data table 'tenants'
func (s *Storage) SaveTenant(ctx context.Context, tenant models.Tenant) (int32, error) {
	const op = "storage.postgres.SaveTenant"

	var id int32
	err := s.dbPool.QueryRow(
		ctx,
		`INSERT INTO tenants(client_id, client_secret, redirect_uri, required_scopes, name)
		VALUES($1, $2, $3, $4, $5) RETURNING id`,
		tenant.ClientID,
		tenant.ClientSecret,
		tenant.RedirectURI,
		tenant.RequiredScopes,
		tenant.Name,
	).Scan(&id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeUniqueViolation {
			return 0, storage.ErrTenantExists
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

const tenantColumns = "id, client_id, client_secret, redirect_uri, required_scopes, name"

func scanTenant(row pgx.Row) (models.Tenant, error) {
	var tenant models.Tenant
	err := row.Scan(
		&tenant.ID,
		&tenant.ClientID,
		&tenant.ClientSecret,
		&tenant.RedirectURI,
		&tenant.RequiredScopes,
		&tenant.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, storage.ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

// TenantByClientID searches tenant by its OAuth client id
func (s *Storage) TenantByClientID(ctx context.Context, clientID string) (models.Tenant, error) {
	const op = "storage.postgres.TenantByClientID"

	tenant, err := scanTenant(s.dbPool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE client_id = $1",
		clientID,
	))
	if err != nil && !errors.Is(err, storage.ErrTenantNotFound) {
		return tenant, fmt.Errorf("%s: %w", op, err)
	}
	return tenant, err
}

// TenantByID searches tenant by its id
func (s *Storage) TenantByID(ctx context.Context, id int32) (models.Tenant, error) {
	const op = "storage.postgres.TenantByID"

	tenant, err := scanTenant(s.dbPool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1",
		id,
	))
	if err != nil && !errors.Is(err, storage.ErrTenantNotFound) {
		return tenant, fmt.Errorf("%s: %w", op, err)
	}
	return tenant, err
}

// SaveIdentity saves identity in data table 'identities'
func (s *Storage) SaveIdentity(ctx context.Context, identity models.Identity) (int64, error) {
	const op = "storage.postgres.SaveIdentity"

	var id int64
	err := s.dbPool.QueryRow(
		ctx,
		"INSERT INTO identities(username, password, provided_scopes) VALUES($1, $2, $3) RETURNING id",
		identity.Username,
		identity.PassHash,
		identity.ProvidedScopes,
	).Scan(&id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeUniqueViolation {
			return 0, storage.ErrIdentityExists
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

const identityColumns = "id, username, password, provided_scopes"

func scanIdentity(row pgx.Row) (models.Identity, error) {
	var identity models.Identity
	err := row.Scan(&identity.ID, &identity.Username, &identity.PassHash, &identity.ProvidedScopes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Identity{}, storage.ErrIdentityNotFound
		}
		return models.Identity{}, err
	}
	return identity, nil
}

// IdentityByUsername gets identity from db by specified username
func (s *Storage) IdentityByUsername(ctx context.Context, username string) (models.Identity, error) {
	const op = "storage.postgres.IdentityByUsername"

	identity, err := scanIdentity(s.dbPool.QueryRow(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE username = $1",
		username,
	))
	if err != nil && !errors.Is(err, storage.ErrIdentityNotFound) {
		return identity, fmt.Errorf("%s: %w", op, err)
	}
	return identity, err
}

// IdentityByID searches identity in database by its ID
func (s *Storage) IdentityByID(ctx context.Context, id int64) (models.Identity, error) {
	const op = "storage.postgres.IdentityByID"

	identity, err := scanIdentity(s.dbPool.QueryRow(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = $1",
		id,
	))
	if err != nil && !errors.Is(err, storage.ErrIdentityNotFound) {
		return identity, fmt.Errorf("%s: %w", op, err)
	}
	return identity, err
}

// SaveGrant inserts a grant or replaces the scopes and issuance time of an existing one
func (s *Storage) SaveGrant(ctx context.Context, grant models.Grant) error {
	const op = "storage.postgres.SaveGrant"

	scopes := grant.ApprovedScopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := s.dbPool.Exec(
		ctx,
		`INSERT INTO issued_grants(tenant_id, identity_id, approved_scopes, issuance_date_time)
		VALUES($1, $2, $3, $4)
		ON CONFLICT (tenant_id, identity_id) DO UPDATE
		SET approved_scopes = EXCLUDED.approved_scopes, issuance_date_time = EXCLUDED.issuance_date_time`,
		grant.TenantID,
		grant.IdentityID,
		scopes,
		grant.IssuedAt,
	)
	if err != nil {
		if code, constraint := pgErrorCode(err); code == codeForeignKeyViolation {
			if constraint == constraintGrantTenant {
				return storage.ErrTenantNotFound
			}
			return storage.ErrIdentityNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Grant returns the grant stored under key
func (s *Storage) Grant(ctx context.Context, key models.GrantKey) (models.Grant, error) {
	const op = "storage.postgres.Grant"

	var grant models.Grant
	err := s.dbPool.QueryRow(
		ctx,
		`SELECT tenant_id, identity_id, approved_scopes, issuance_date_time
		FROM issued_grants WHERE tenant_id = $1 AND identity_id = $2`,
		key.TenantID,
		key.IdentityID,
	).Scan(&grant.TenantID, &grant.IdentityID, &grant.ApprovedScopes, &grant.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Grant{}, storage.ErrGrantNotFound
		}
		return models.Grant{}, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

// DeleteGrant removes grant, absent grants are not an error
func (s *Storage) DeleteGrant(ctx context.Context, key models.GrantKey) error {
	const op = "storage.postgres.DeleteGrant"

	_, err := s.dbPool.Exec(
		ctx,
		"DELETE FROM issued_grants WHERE tenant_id = $1 AND identity_id = $2",
		key.TenantID,
		key.IdentityID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
