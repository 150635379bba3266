//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/pagination"
	"github.com/verdantlabs/verdant/internal/testutil"
)

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	repo := NewDocumentRepository(pool)

	doc := seedDocument(ctx, t, pool, tenant.ID)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.OriginalName, got.OriginalName)
	assert.Equal(t, domain.DocumentStatusProcessing, got.Status)
	assert.Equal(t, int64(1024), got.FileSize)
	assert.Empty(t, got.Error)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	repo := NewDocumentRepository(pool)
	doc := seedDocument(ctx, t, pool, tenant.ID)

	require.NoError(t, repo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady, 12, ""))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusReady, got.Status)
	assert.Equal(t, 12, got.ChunkCount)

	require.NoError(t, repo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, 0, "extraction failed"))

	got, err = repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, got.Status)
	assert.Equal(t, "extraction failed", got.Error)

	err = repo.UpdateStatus(ctx, uuid.NewString(), domain.DocumentStatusReady, 0, "")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListByTenant_ScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	other := seedTenant(ctx, t, pool)
	repo := NewDocumentRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	older := domain.NewDocument(uuid.NewString(), tenant.ID, "a.pdf", "a.pdf", "k/a", 1, now)
	newer := domain.NewDocument(uuid.NewString(), tenant.ID, "b.pdf", "b.pdf", "k/b", 1, now.Add(time.Second))
	foreign := domain.NewDocument(uuid.NewString(), other.ID, "c.pdf", "c.pdf", "k/c", 1, now)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, foreign))

	docs, err := repo.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, newer.ID, docs[0].ID)
	assert.Equal(t, older.ID, docs[1].ID)

	count, err := repo.CountByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDocumentRepository_CursorPagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	repo := NewDocumentRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		doc := domain.NewDocument(uuid.NewString(), tenant.ID,
			fmt.Sprintf("doc-%d.pdf", i), fmt.Sprintf("doc-%d.pdf", i),
			fmt.Sprintf("k/%d", i), 1, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(ctx, doc))
	}

	first, err := repo.ListByTenantWithCursor(ctx, tenant.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextCursor)
	assert.Equal(t, "doc-4.pdf", first.Items[0].OriginalName)
	assert.Equal(t, "doc-3.pdf", first.Items[1].OriginalName)

	cursor, err := pagination.DecodeCursor(first.NextCursor)
	require.NoError(t, err)

	second, err := repo.ListByTenantWithCursor(ctx, tenant.ID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.True(t, second.HasMore)
	assert.Equal(t, "doc-2.pdf", second.Items[0].OriginalName)
	assert.Equal(t, "doc-1.pdf", second.Items[1].OriginalName)

	cursor, err = pagination.DecodeCursor(second.NextCursor)
	require.NoError(t, err)

	last, err := repo.ListByTenantWithCursor(ctx, tenant.ID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextCursor)
	assert.Equal(t, "doc-0.pdf", last.Items[0].OriginalName)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	repo := NewDocumentRepository(pool)
	doc := seedDocument(ctx, t, pool, tenant.ID)

	require.NoError(t, repo.Delete(ctx, doc.ID))

	_, err := repo.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.Delete(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
