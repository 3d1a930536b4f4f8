package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Service builds read-only financial reports. Concurrent requests for the same
// report share one build.
type Service struct {
	repo     Repository
	cache    *Cache
	currency string
	group    singleflight.Group
}

func NewService(repo Repository, cache *Cache, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{repo: repo, cache: cache, currency: currency}
}

func (s *Service) TrialBalance(ctx context.Context, companyID int64, asOf shared.Date) (TrialBalance, error) {
	var out TrialBalance
	err := s.build(ctx, companyID, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, companyID, nil, asOf)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(asOf, balances), nil
	}, "tb", asOf.String())
	return out, err
}

func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, from, to shared.Date) (ProfitAndLoss, error) {
	if to.Before(from) {
		return ProfitAndLoss{}, fmt.Errorf("%w: to before from", shared.ErrValidation)
	}
	var out ProfitAndLoss
	err := s.build(ctx, companyID, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, companyID, &from, to)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(from, to, balances), nil
	}, "pl", from.String(), to.String())
	return out, err
}

func (s *Service) BalanceSheet(ctx context.Context, companyID int64, asOf shared.Date) (BalanceSheet, error) {
	var out BalanceSheet
	err := s.build(ctx, companyID, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, companyID, nil, asOf)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(asOf, balances), nil
	}, "bs", asOf.String())
	return out, err
}

func (s *Service) CashSummary(ctx context.Context, companyID int64, asOf shared.Date) (CashSummary, error) {
	var out CashSummary
	err := s.build(ctx, companyID, &out, func(ctx context.Context) (any, error) {
		balances, err := s.repo.Balances(ctx, companyID, nil, asOf)
		if err != nil {
			return nil, err
		}
		return BuildCashSummary(asOf, s.currency, balances), nil
	}, "cash", asOf.String())
	return out, err
}

func (s *Service) build(ctx context.Context, companyID int64, dest any, loader func(context.Context) (any, error), parts ...string) error {
	if err := shared.RequireCompany(companyID); err != nil {
		return err
	}
	key, err := s.cache.BuildKey(ctx, companyID, parts...)
	if err != nil {
		return fmt.Errorf("reports: cache key: %w", err)
	}
	raw, err, _ := s.group.Do(key, func() (any, error) {
		return s.cache.FetchRaw(ctx, key, loader)
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}
