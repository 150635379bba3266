//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/testutil"
)

// oneHot builds a unit vector along one axis so cosine scores are exact:
// identical axes score 1, orthogonal axes score 0.
func oneHot(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

func vectorRecordsFor(doc *domain.Document, axes ...int) []domain.VectorRecord {
	records := make([]domain.VectorRecord, len(axes))
	for i, axis := range axes {
		records[i] = domain.VectorRecord{
			ID:         domain.VectorRecordID(doc.ID, i),
			TenantID:   doc.TenantID,
			DocumentID: doc.ID,
			ChunkIndex: i,
			Text:       fmt.Sprintf("chunk %d", i),
			Embedding:  oneHot(axis),
		}
	}
	return records
}

func TestVectorRepository_QueryOrdersByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	doc := seedDocument(ctx, t, pool, tenant.ID)
	repo := NewVectorRepository(pool)

	// Chunk 0 matches the query axis exactly; chunk 1 is close; chunk 2 is
	// orthogonal.
	near := oneHot(0)
	near[1] = 0.5
	records := []domain.VectorRecord{
		{ID: domain.VectorRecordID(doc.ID, 0), TenantID: tenant.ID, DocumentID: doc.ID, ChunkIndex: 0, Text: "exact", Embedding: oneHot(0)},
		{ID: domain.VectorRecordID(doc.ID, 1), TenantID: tenant.ID, DocumentID: doc.ID, ChunkIndex: 1, Text: "near", Embedding: near},
		{ID: domain.VectorRecordID(doc.ID, 2), TenantID: tenant.ID, DocumentID: doc.ID, ChunkIndex: 2, Text: "far", Embedding: oneHot(5)},
	}
	require.NoError(t, repo.UpsertBatch(ctx, records))

	matches, err := repo.Query(ctx, tenant.ID, oneHot(0), 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "exact", matches[0].Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "near", matches[1].Text)
	assert.Greater(t, matches[1].Score, matches[2].Score)
	assert.Equal(t, "far", matches[2].Text)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-6)
	assert.Equal(t, doc.ID, matches[0].DocumentID)
	assert.Equal(t, 0, matches[0].ChunkIndex)
}

func TestVectorRepository_QueryIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	other := seedTenant(ctx, t, pool)
	doc := seedDocument(ctx, t, pool, tenant.ID)
	otherDoc := seedDocument(ctx, t, pool, other.ID)
	repo := NewVectorRepository(pool)

	require.NoError(t, repo.UpsertBatch(ctx, vectorRecordsFor(doc, 0)))
	require.NoError(t, repo.UpsertBatch(ctx, vectorRecordsFor(otherDoc, 0)))

	matches, err := repo.Query(ctx, tenant.ID, oneHot(0), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, doc.ID, matches[0].DocumentID)
}

func TestVectorRepository_UpsertOverwritesOnReingest(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	doc := seedDocument(ctx, t, pool, tenant.ID)
	repo := NewVectorRepository(pool)

	require.NoError(t, repo.UpsertBatch(ctx, vectorRecordsFor(doc, 0, 1)))
	// Same deterministic ids, new content.
	require.NoError(t, repo.UpsertBatch(ctx, vectorRecordsFor(doc, 2, 3)))

	count, err := repo.CountByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	matches, err := repo.Query(ctx, tenant.ID, oneHot(2), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestVectorRepository_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenant := seedTenant(ctx, t, pool)
	doc := seedDocument(ctx, t, pool, tenant.ID)
	keep := seedDocument(ctx, t, pool, tenant.ID)
	repo := NewVectorRepository(pool)

	require.NoError(t, repo.UpsertBatch(ctx, vectorRecordsFor(doc, 0, 1, 2)))
	require.NoError(t, repo.UpsertBatch(ctx, vectorRecordsFor(keep, 3)))

	require.NoError(t, repo.DeleteByDocument(ctx, tenant.ID, doc.ID))

	count, err := repo.CountByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting a document with no records is a no-op.
	require.NoError(t, repo.DeleteByDocument(ctx, tenant.ID, doc.ID))
}

func TestVectorRepository_UpsertEmptyBatch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewVectorRepository(pool)
	assert.NoError(t, repo.UpsertBatch(ctx, nil))
}
