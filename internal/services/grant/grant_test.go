package grant_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iam/internal/domain/models"
	"iam/internal/services/grant"
	"iam/internal/storage"
	"iam/internal/storage/memory"
)

type fixture struct {
	svc        *grant.Grant
	store      *memory.Storage
	tenantID   int32
	identityID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.New()
	tenantID, err := store.SaveTenant(ctx, models.Tenant{ClientID: gofakeit.UUID(), Name: gofakeit.AppName()})
	require.NoError(t, err)
	identityID, err := store.SaveIdentity(ctx, models.Identity{Username: gofakeit.Username()})
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		svc:        grant.New(log, store, store, store),
		store:      store,
		tenantID:   tenantID,
		identityID: identityID,
	}
}

func TestIssueGrantUnknownParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssueGrant(ctx, f.tenantID+1, f.identityID, "profile")
	require.ErrorIs(t, err, storage.ErrTenantNotFound)

	_, err = f.svc.IssueGrant(ctx, f.tenantID, f.identityID+1, "profile")
	require.ErrorIs(t, err, storage.ErrIdentityNotFound)

	assert.Equal(t, 0, f.store.GrantCount())
}

func TestIssueGrantLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssueGrant(ctx, f.tenantID, f.identityID, "profile.read cv.read")
	require.NoError(t, err)
	issued, err := f.svc.IssueGrant(ctx, f.tenantID, f.identityID, "jobs.read jobs.read")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs.read"}, issued.ApprovedScopes)
	assert.Equal(t, 1, f.store.GrantCount())

	ok, err := f.svc.CheckGrant(ctx, f.tenantID, f.identityID, "profile.read")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CheckGrant(ctx, f.tenantID, f.identityID, "jobs.read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.CheckGrant(ctx, f.tenantID, f.identityID, "")
	require.NoError(t, err)
	assert.False(t, ok, "no grant row")

	_, err = f.svc.IssueGrant(ctx, f.tenantID, f.identityID, "a b")
	require.NoError(t, err)

	tests := []struct {
		name     string
		required string
		want     bool
	}{
		{name: "empty", required: "", want: true},
		{name: "whitespace only", required: "   ", want: true},
		{name: "single", required: "a", want: true},
		{name: "all", required: "b  a", want: true},
		{name: "missing", required: "a c", want: false},
		{name: "prefix is not a match", required: "ab", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.svc.CheckGrant(ctx, f.tenantID, f.identityID, tt.required)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCheckGrantSubsetProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		approved := make([]string, gofakeit.Number(1, 6))
		for j := range approved {
			approved[j] = gofakeit.Word() + "." + gofakeit.Verb()
		}
		_, err := f.svc.IssueGrant(ctx, f.tenantID, f.identityID, strings.Join(approved, " "))
		require.NoError(t, err)

		subset := approved[:gofakeit.Number(0, len(approved))]
		ok, err := f.svc.CheckGrant(ctx, f.tenantID, f.identityID, strings.Join(subset, " "))
		require.NoError(t, err)
		assert.True(t, ok, "subset %v of %v", subset, approved)

		ok, err = f.svc.CheckGrant(ctx, f.tenantID, f.identityID, strings.Join(append(slices.Clone(subset), "zz.unapproved"), " "))
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestRevokeGrantIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RevokeGrant(ctx, f.tenantID, f.identityID))

	_, err := f.svc.IssueGrant(ctx, f.tenantID, f.identityID, "profile")
	require.NoError(t, err)
	require.NoError(t, f.svc.RevokeGrant(ctx, f.tenantID, f.identityID))
	require.NoError(t, f.svc.RevokeGrant(ctx, f.tenantID, f.identityID))

	ok, err := f.svc.CheckGrant(ctx, f.tenantID, f.identityID, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNormalizeScopes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, grant.NormalizeScopes(" a b  a "))
	assert.Empty(t, grant.NormalizeScopes(""))
}
