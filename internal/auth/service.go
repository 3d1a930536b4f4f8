package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const secretBytes = 24

// Service issues and verifies API keys.
type Service struct {
	repo Repository
	cost int
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// CreateCompany provisions a tenant.
func (s *Service) CreateCompany(ctx context.Context, name string) (Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Company{}, fmt.Errorf("%w: company name required", shared.ErrValidation)
	}
	return s.repo.CreateCompany(ctx, name)
}

// IssueKey mints a key for companyID. Only the bcrypt hash of the secret is
// stored; the returned token cannot be recovered later.
func (s *Service) IssueKey(ctx context.Context, companyID int64, label string) (IssuedKey, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return IssuedKey{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return IssuedKey{}, fmt.Errorf("%w: label required", shared.ErrValidation)
	}
	if _, err := s.repo.GetCompany(ctx, companyID); err != nil {
		return IssuedKey{}, err
	}
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return IssuedKey{}, fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("hash secret: %w", err)
	}
	key, err := s.repo.InsertKey(ctx, APIKey{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Label:      label,
		SecretHash: string(hash),
	})
	if err != nil {
		return IssuedKey{}, err
	}
	return IssuedKey{Key: key, Token: key.ID.String() + "." + secret}, nil
}

// Authenticate resolves a bearer token to the company scope it grants. Every
// failure collapses into ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (shared.Scope, error) {
	id, secret, err := ParseToken(token)
	if err != nil {
		return shared.Scope{}, err
	}
	key, err := s.repo.FindKey(ctx, id)
	if err != nil {
		return shared.Scope{}, shared.ErrUnauthorized
	}
	if !key.Active() {
		return shared.Scope{}, shared.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return shared.Scope{}, shared.ErrUnauthorized
	}
	return shared.Scope{CompanyID: key.CompanyID, Actor: "apikey:" + key.Label}, nil
}

// RevokeKey disables a key of companyID.
func (s *Service) RevokeKey(ctx context.Context, companyID int64, id uuid.UUID) error {
	if err := shared.RequireCompany(companyID); err != nil {
		return err
	}
	return s.repo.RevokeKey(ctx, companyID, id)
}
