package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verdantlabs/verdant/internal/domain"
)

type UnansweredQueryRepository struct {
	db dbtx
}

func NewUnansweredQueryRepository(pool *pgxpool.Pool) *UnansweredQueryRepository {
	return &UnansweredQueryRepository{db: pool}
}

func NewUnansweredQueryRepositoryWithTx(tx pgx.Tx) *UnansweredQueryRepository {
	return &UnansweredQueryRepository{db: tx}
}

const unansweredColumns = `id, tenant_id, question, normalized_question, score, count, status, first_seen_at, last_seen_at`

func (r *UnansweredQueryRepository) Create(ctx context.Context, q *domain.UnansweredQuery) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO unanswered_queries (`+unansweredColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.TenantID, q.Question, q.NormalizedQuestion, q.Score, q.Count, q.Status, q.FirstSeenAt, q.LastSeenAt,
	)
	return err
}

func scanUnanswered(row pgx.Row) (*domain.UnansweredQuery, error) {
	var q domain.UnansweredQuery
	err := row.Scan(&q.ID, &q.TenantID, &q.Question, &q.NormalizedQuestion, &q.Score, &q.Count, &q.Status, &q.FirstSeenAt, &q.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *UnansweredQueryRepository) GetByID(ctx context.Context, id string) (*domain.UnansweredQuery, error) {
	q, err := scanUnanswered(r.db.QueryRow(ctx,
		`SELECT `+unansweredColumns+` FROM unanswered_queries WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, err
	}
	return q, nil
}

func (r *UnansweredQueryRepository) GetByNormalized(ctx context.Context, tenantID, normalized string) (*domain.UnansweredQuery, error) {
	q, err := scanUnanswered(r.db.QueryRow(ctx,
		`SELECT `+unansweredColumns+` FROM unanswered_queries
		 WHERE tenant_id = $1 AND normalized_question = $2`,
		tenantID, normalized,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, err
	}
	return q, nil
}

func (r *UnansweredQueryRepository) ListByTenant(ctx context.Context, tenantID string, status domain.UnansweredQueryStatus) ([]*domain.UnansweredQuery, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+unansweredColumns+` FROM unanswered_queries
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY count DESC, last_seen_at DESC`,
		tenantID, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []*domain.UnansweredQuery
	for rows.Next() {
		q, err := scanUnanswered(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// RecordHit bumps the repeat count and refreshes the score and last-seen
// timestamp of an existing row.
func (r *UnansweredQueryRepository) RecordHit(ctx context.Context, id string, score float64, seenAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE unanswered_queries
		 SET count = count + 1, score = $1, last_seen_at = $2
		 WHERE id = $3`,
		score, seenAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrQueryNotFound
	}
	return nil
}

func (r *UnansweredQueryRepository) UpdateStatus(ctx context.Context, id string, status domain.UnansweredQueryStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE unanswered_queries SET status = $1 WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrQueryNotFound
	}
	return nil
}

func (r *UnansweredQueryRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM unanswered_queries WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrQueryNotFound
	}
	return nil
}

// CountPendingByTenant powers the analytics overview.
func (r *UnansweredQueryRepository) CountPendingByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM unanswered_queries WHERE tenant_id = $1 AND status = $2`,
		tenantID, domain.UnansweredStatusPending,
	).Scan(&count)
	return count, err
}
