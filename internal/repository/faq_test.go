//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/testutil"
)

func TestFaqRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	repo := NewFaqRepository(pool)

	entry := domain.NewFaqEntry(uuid.NewString(), tenant.ID, "How do refunds work?", "Within thirty days.", "", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Question, got.Question)
	assert.Equal(t, "General", got.Category)
	assert.Empty(t, got.SourceQueryID)
	assert.True(t, got.Active)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrFaqNotFound)
}

func TestFaqRepository_ListByTenant_ActiveOnly(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	repo := NewFaqRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	active := domain.NewFaqEntry(uuid.NewString(), tenant.ID, "Active?", "Yes.", "", now)
	inactive := domain.NewFaqEntry(uuid.NewString(), tenant.ID, "Inactive?", "No.", "", now.Add(time.Second))
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, inactive))
	require.NoError(t, repo.Deactivate(ctx, inactive.ID))

	onlyActive, err := repo.ListByTenant(ctx, tenant.ID, true)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)

	all, err := repo.ListByTenant(ctx, tenant.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFaqRepository_PreservesSourceQueryLink(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	q := seedUnanswered(ctx, t, pool, tenant.ID, "source question")
	repo := NewFaqRepository(pool)

	entry := domain.NewFaqEntry(uuid.NewString(), tenant.ID, "Source question?", "Answer.", q.ID, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.SourceQueryID)
}

func TestFaqRepository_CreateUpsertsOnSameQuestion(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	other := seedTenant(ctx, t, pool)
	repo := NewFaqRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := domain.NewFaqEntry(uuid.NewString(), tenant.ID, "How do refunds work?", "Within thirty days.", "", now)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Deactivate(ctx, first.ID))

	// Same tenant and question lands on the existing row: new answer, row
	// reactivated, original identity kept.
	second := domain.NewFaqEntry(uuid.NewString(), tenant.ID, "How do refunds work?", "Within sixty days.", "", now.Add(time.Second))
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Within sixty days.", got.Answer)
	assert.True(t, got.Active)

	all, err := repo.ListByTenant(ctx, tenant.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Another tenant holding the same question is a separate row.
	foreign := domain.NewFaqEntry(uuid.NewString(), other.ID, "How do refunds work?", "Never.", "", now)
	require.NoError(t, repo.Create(ctx, foreign))
	assert.NotEqual(t, first.ID, foreign.ID)
}

func TestFaqRepository_Deactivate_Missing(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFaqRepository(pool)
	assert.ErrorIs(t, repo.Deactivate(ctx, uuid.NewString()), domain.ErrFaqNotFound)
}
