package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verdantlabs/verdant/internal/domain"
)

type ChatSessionRepository struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepository(pool *pgxpool.Pool) *ChatSessionRepository {
	return &ChatSessionRepository{pool: pool}
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, tenant_id, visitor_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.TenantID, nullableString(session.VisitorID), session.CreatedAt, session.UpdatedAt,
	)
	return err
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	var session domain.ChatSession
	var visitorID *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, visitor_id, created_at, updated_at
		 FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.TenantID, &visitorID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if visitorID != nil {
		session.VisitorID = *visitorID
	}
	return &session, nil
}

func (r *ChatSessionRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ChatSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, visitor_id, created_at, updated_at
		 FROM chat_sessions WHERE tenant_id = $1 ORDER BY updated_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.ChatSession
	for rows.Next() {
		var session domain.ChatSession
		var visitorID *string
		if err := rows.Scan(&session.ID, &session.TenantID, &visitorID, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		if visitorID != nil {
			session.VisitorID = *visitorID
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

func (r *ChatSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// CountByTenant powers the analytics overview.
func (r *ChatSessionRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_sessions WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	return count, err
}

type ConversationTurnRepository struct {
	pool *pgxpool.Pool
}

func NewConversationTurnRepository(pool *pgxpool.Pool) *ConversationTurnRepository {
	return &ConversationTurnRepository{pool: pool}
}

func (r *ConversationTurnRepository) Create(ctx context.Context, turn *domain.ConversationTurn) error {
	var citations []byte
	if len(turn.Citations) > 0 {
		var err error
		citations, err = json.Marshal(turn.Citations)
		if err != nil {
			return err
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, session_id, role, content, citations, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.SessionID, turn.Role, turn.Content, citations, turn.Confidence, turn.CreatedAt,
	)
	return err
}

func (r *ConversationTurnRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, role, content, citations, confidence, created_at
		 FROM conversation_turns WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		var citations []byte
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Role, &turn.Content, &citations, &turn.Confidence, &turn.CreatedAt); err != nil {
			return nil, err
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &turn.Citations); err != nil {
				return nil, err
			}
		}
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}
