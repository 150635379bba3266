package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verdantlabs/verdant/internal/domain"
)

type FaqRepository struct {
	db dbtx
}

func NewFaqRepository(pool *pgxpool.Pool) *FaqRepository {
	return &FaqRepository{db: pool}
}

func NewFaqRepositoryWithTx(tx pgx.Tx) *FaqRepository {
	return &FaqRepository{db: tx}
}

const faqColumns = `id, tenant_id, question, answer, source_query_id, category, active, created_at, updated_at`

// Create upserts on (tenant_id, question): re-adding a question refreshes the
// answer and reactivates the existing row instead of duplicating it. The
// caller's entry is updated with the surviving row's identity.
func (r *FaqRepository) Create(ctx context.Context, entry *domain.FaqEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO faq_entries (`+faqColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (tenant_id, question) DO UPDATE
		 SET answer = EXCLUDED.answer,
		     source_query_id = EXCLUDED.source_query_id,
		     category = EXCLUDED.category,
		     active = TRUE,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		entry.ID, entry.TenantID, entry.Question, entry.Answer, nullableString(entry.SourceQueryID),
		entry.Category, entry.Active, entry.CreatedAt, entry.UpdatedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func scanFaq(row pgx.Row) (*domain.FaqEntry, error) {
	var entry domain.FaqEntry
	var sourceQueryID pgtype.Text
	err := row.Scan(&entry.ID, &entry.TenantID, &entry.Question, &entry.Answer, &sourceQueryID,
		&entry.Category, &entry.Active, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sourceQueryID.Valid {
		entry.SourceQueryID = sourceQueryID.String
	}
	return &entry, nil
}

func (r *FaqRepository) GetByID(ctx context.Context, id string) (*domain.FaqEntry, error) {
	entry, err := scanFaq(r.db.QueryRow(ctx,
		`SELECT `+faqColumns+` FROM faq_entries WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFaqNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (r *FaqRepository) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.FaqEntry, error) {
	query := `SELECT ` + faqColumns + ` FROM faq_entries WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.FaqEntry
	for rows.Next() {
		entry, err := scanFaq(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Deactivate soft-deletes an entry. Rows are never hard-deleted so the
// (tenant_id, question) key keeps its history; tenant removal cascades.
func (r *FaqRepository) Deactivate(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE faq_entries SET active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFaqNotFound
	}
	return nil
}
