package domain

import (
	"fmt"
	"time"
)

// Tenant is the isolation boundary: documents, vectors, sessions, tracked
// queries, and FAQ entries all partition by tenant id.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// APIKey authenticates admin operations for one tenant. Only the SHA-256 hash
// of the token is stored.
type APIKey struct {
	ID        string
	TenantID  string
	Name      string
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// ValidateTenant validates a Tenant instance
func ValidateTenant(t *Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant cannot be nil")
	}
	if t.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if t.Name == "" {
		return fmt.Errorf("tenant Name is required")
	}
	return nil
}

// ValidateAPIKey validates an APIKey instance
func ValidateAPIKey(k *APIKey) error {
	if k == nil {
		return fmt.Errorf("api key cannot be nil")
	}
	if k.ID == "" {
		return fmt.Errorf("api key ID is required")
	}
	if k.TenantID == "" {
		return fmt.Errorf("api key TenantID is required")
	}
	if k.KeyHash == "" {
		return fmt.Errorf("api key KeyHash is required")
	}
	return nil
}

// IsRevoked reports whether the key has been revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}
