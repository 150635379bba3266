package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/verdantlabs/verdant/internal/domain"
)

const vectorDeleteBatchSize = 100

// VectorRepository stores and queries chunk embeddings. All access is scoped
// by tenant id; no query can cross the namespace boundary.
type VectorRepository struct {
	pool *pgxpool.Pool
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{pool: pool}
}

// UpsertBatch writes all records in one transaction so a document's chunks
// become visible to retrieval atomically. Record ids are deterministic, so
// re-ingesting a document overwrites rather than duplicates.
func (r *VectorRepository) UpsertBatch(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO vector_records (id, tenant_id, document_id, chunk_index, text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE
			 SET tenant_id = EXCLUDED.tenant_id,
			     document_id = EXCLUDED.document_id,
			     chunk_index = EXCLUDED.chunk_index,
			     text = EXCLUDED.text,
			     embedding = EXCLUDED.embedding`,
			rec.ID, rec.TenantID, rec.DocumentID, rec.ChunkIndex, rec.Text, pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Query returns the topK nearest records in the tenant's namespace by cosine
// similarity, best first.
func (r *VectorRepository) Query(ctx context.Context, tenantID string, embedding []float32, topK int) ([]domain.RetrievalMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.pool.Query(ctx,
		`SELECT text, document_id, chunk_index, 1 - (embedding <=> $1) AS score
		 FROM vector_records
		 WHERE tenant_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, tenantID, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.RetrievalMatch
	for rows.Next() {
		var m domain.RetrievalMatch
		if err := rows.Scan(&m.Text, &m.DocumentID, &m.ChunkIndex, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByDocument removes a document's records by reconstructing the
// deterministic id sequence in fixed-size batches, stopping at the first
// batch that deletes nothing. The chunk count does not need to be known.
func (r *VectorRepository) DeleteByDocument(ctx context.Context, tenantID, documentID string) error {
	for start := 0; ; start += vectorDeleteBatchSize {
		ids := make([]string, vectorDeleteBatchSize)
		for i := range ids {
			ids[i] = domain.VectorRecordID(documentID, start+i)
		}

		cmdTag, err := r.pool.Exec(ctx,
			`DELETE FROM vector_records WHERE tenant_id = $1 AND id = ANY($2)`,
			tenantID, ids,
		)
		if err != nil {
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			return nil
		}
	}
}

// CountByTenant powers the analytics overview.
func (r *VectorRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM vector_records WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}
