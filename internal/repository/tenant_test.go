//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/testutil"
)

func seedTenant(ctx context.Context, t *testing.T, pool *pgxpool.Pool) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{
		ID:        uuid.NewString(),
		Name:      "Tenant " + uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewTenantRepository(pool).Create(ctx, tenant))
	return tenant
}

func seedDocument(ctx context.Context, t *testing.T, pool *pgxpool.Pool, tenantID string) *domain.Document {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := domain.NewDocument(uuid.NewString(), tenantID, "file.pdf", "original.pdf", tenantID+"/file.pdf", 1024, now)
	require.NoError(t, NewDocumentRepository(pool).Create(ctx, doc))
	return doc
}

func TestTenantRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTenantRepository(pool)

	tenant := &domain.Tenant{
		ID:        uuid.NewString(),
		Name:      "Acme Corp",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Create(ctx, tenant))

	byID, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Name, byID.Name)

	byName, err := repo.GetByName(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, byName.ID)
}

func TestTenantRepository_DuplicateName(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTenantRepository(pool)

	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, &domain.Tenant{ID: uuid.NewString(), Name: "Dup", CreatedAt: now}))

	err := repo.Create(ctx, &domain.Tenant{ID: uuid.NewString(), Name: "Dup", CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrTenantAlreadyExists)
}

func TestTenantRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTenantRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantRepository_List(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTenantRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := &domain.Tenant{ID: uuid.NewString(), Name: "First", CreatedAt: now}
	second := &domain.Tenant{ID: uuid.NewString(), Name: "Second", CreatedAt: now.Add(time.Second)}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	tenants, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "Second", tenants[0].Name)
	assert.Equal(t, "First", tenants[1].Name)
}

func TestTenantRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewTenantRepository(pool)
	tenant := seedTenant(ctx, t, pool)

	require.NoError(t, repo.Delete(ctx, tenant.ID))

	_, err := repo.GetByID(ctx, tenant.ID)
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	err = repo.Delete(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}
