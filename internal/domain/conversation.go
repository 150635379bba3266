package domain

import (
	"fmt"
	"time"
)

// TurnRole identifies the author of a conversation turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ChatSession groups the turns of one visitor conversation for a tenant
type ChatSession struct {
	ID        string
	TenantID  string
	VisitorID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationTurn is one appended message in a session. Turns are immutable
// once written; assistant turns carry citations and the turn confidence.
type ConversationTurn struct {
	ID         string
	SessionID  string
	Role       TurnRole
	Content    string
	Citations  []Citation
	Confidence *float64
	CreatedAt  time.Time
}

// ValidateTurn validates a ConversationTurn instance
func ValidateTurn(t *ConversationTurn) error {
	if t == nil {
		return fmt.Errorf("turn cannot be nil")
	}
	if t.SessionID == "" {
		return fmt.Errorf("turn SessionID is required")
	}
	if t.Role != TurnRoleUser && t.Role != TurnRoleAssistant {
		return fmt.Errorf("turn Role must be user or assistant")
	}
	if t.Content == "" {
		return fmt.Errorf("turn Content is required")
	}
	return nil
}
