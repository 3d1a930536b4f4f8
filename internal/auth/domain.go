package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Company is a tenant. Every ledger row is partitioned by its id.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey grants a caller the scope of one company.
type APIKey struct {
	ID         uuid.UUID
	CompanyID  int64
	Label      string
	SecretHash string
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Active reports whether the key may still authenticate.
func (k APIKey) Active() bool {
	return k.RevokedAt == nil
}

// IssuedKey carries the plaintext token, which is only available at creation.
type IssuedKey struct {
	Key   APIKey
	Token string
}

// ParseToken splits a "<uuid>.<secret>" bearer token.
func ParseToken(token string) (uuid.UUID, string, error) {
	idPart, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return uuid.Nil, "", fmt.Errorf("%w: malformed api key", shared.ErrUnauthorized)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: malformed api key", shared.ErrUnauthorized)
	}
	return id, secret, nil
}
