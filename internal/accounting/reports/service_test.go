package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type stubRepo struct {
	mu       sync.Mutex
	balances []AccountBalance
	calls    atomic.Int32
	gate     chan struct{}
}

func (r *stubRepo) Balances(ctx context.Context, companyID int64, from *shared.Date, to shared.Date) ([]AccountBalance, error) {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AccountBalance(nil), r.balances...), nil
}

func (r *stubRepo) set(balances []AccountBalance) {
	r.mu.Lock()
	r.balances = balances
	r.mu.Unlock()
}

func newCachedService(t *testing.T, repo Repository) (*Service, *Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute, nil)
	return NewService(repo, cache, "USD"), cache, mr
}

func cashAndEquity(amount shared.Amount) []AccountBalance {
	return []AccountBalance{
		{AccountID: 1, Code: "1010", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: amount},
		{AccountID: 2, Code: "3000", Name: "Equity", Type: accounts.AccountTypeEquity, Credit: amount},
	}
}

func TestReportsServedFromCacheUntilInvalidated(t *testing.T) {
	repo := &stubRepo{balances: cashAndEquity(500)}
	svc, cache, _ := newCachedService(t, repo)
	ctx := context.Background()

	tb, err := svc.TrialBalance(ctx, 1, asOf)
	require.NoError(t, err)
	require.Equal(t, shared.Amount(500), tb.TotalDebit)

	repo.set(cashAndEquity(900))
	tb, err = svc.TrialBalance(ctx, 1, asOf)
	require.NoError(t, err)
	require.Equal(t, shared.Amount(500), tb.TotalDebit, "second read should hit the cache")
	require.EqualValues(t, 1, repo.calls.Load())

	cache.Invalidate(ctx, 1)
	tb, err = svc.TrialBalance(ctx, 1, asOf)
	require.NoError(t, err)
	require.Equal(t, shared.Amount(900), tb.TotalDebit)
	require.EqualValues(t, 2, repo.calls.Load())
}

func TestInvalidationIsPerCompany(t *testing.T) {
	repo := &stubRepo{balances: cashAndEquity(100)}
	svc, cache, _ := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.BalanceSheet(ctx, 1, asOf)
	require.NoError(t, err)
	_, err = svc.BalanceSheet(ctx, 2, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.calls.Load())

	cache.Invalidate(ctx, 2)
	_, err = svc.BalanceSheet(ctx, 1, asOf)
	require.NoError(t, err)
	_, err = svc.BalanceSheet(ctx, 2, asOf)
	require.NoError(t, err)
	require.EqualValues(t, 3, repo.calls.Load())

	v1, err := cache.Version(ctx, 1)
	require.NoError(t, err)
	v2, err := cache.Version(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), v1)
	require.Equal(t, int64(2), v2)
}

func TestConcurrentBuildsShareOneLoad(t *testing.T) {
	repo := &stubRepo{balances: cashAndEquity(100), gate: make(chan struct{})}
	svc, _, _ := newCachedService(t, repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]CashSummary, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.CashSummary(ctx, 1, asOf)
			require.NoError(t, err)
			results[i] = out
		}(i)
	}
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	require.EqualValues(t, 1, repo.calls.Load())
	for _, out := range results {
		require.Equal(t, "USD", out.Currency)
	}
}

func TestServiceWorksWithoutRedis(t *testing.T) {
	repo := &stubRepo{balances: cashAndEquity(250)}
	svc := NewService(repo, nil, "")
	pl, err := svc.ProfitAndLoss(context.Background(), 1, shared.NewDate(2025, time.January, 1), asOf)
	require.NoError(t, err)
	require.Equal(t, shared.Amount(0), pl.NetIncome)

	_, err = svc.ProfitAndLoss(context.Background(), 1, asOf, shared.NewDate(2025, time.January, 1))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.TrialBalance(context.Background(), 0, asOf)
	require.ErrorIs(t, err, shared.ErrValidation)
}
