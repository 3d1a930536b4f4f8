package journals

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type memAccount struct {
	companyID int64
	typ       accounts.AccountType
	archived  bool
	balance   shared.Amount
}

type memoryLedger struct {
	accounts    map[int64]memAccount
	entries     map[int64]Entry
	lockedThru  map[int64]shared.Date
	seq         map[int64]int64
	nextEntryID int64
	nextLineID  int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		accounts:   make(map[int64]memAccount),
		entries:    make(map[int64]Entry),
		lockedThru: make(map[int64]shared.Date),
		seq:        make(map[int64]int64),
	}
}

func (m *memoryLedger) snapshot() *memoryLedger {
	cp := newMemoryLedger()
	for k, v := range m.accounts {
		cp.accounts[k] = v
	}
	for k, v := range m.entries {
		v.Lines = append([]Line(nil), v.Lines...)
		cp.entries[k] = v
	}
	for k, v := range m.lockedThru {
		cp.lockedThru[k] = v
	}
	for k, v := range m.seq {
		cp.seq[k] = v
	}
	cp.nextEntryID, cp.nextLineID = m.nextEntryID, m.nextLineID
	return cp
}

// WithTx restores the previous state when fn fails, mimicking a rollback.
func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.snapshot()
	if err := fn(ctx, &memoryLedgerTx{m: m}); err != nil {
		*m = *saved
		return err
	}
	return nil
}

func (m *memoryLedger) Bind(q db.DBTX) TxRepository {
	return &memoryLedgerTx{m: m}
}

func (m *memoryLedger) Get(ctx context.Context, companyID, id int64) (Entry, error) {
	e, ok := m.entries[id]
	if !ok || e.CompanyID != companyID {
		return Entry{}, fmt.Errorf("%w: journal entry", shared.ErrNotFound)
	}
	return e, nil
}

func (m *memoryLedger) List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, int, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.CompanyID != companyID || (filter.Status != "" && e.Status != filter.Status) {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		e.Lines = nil
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

type memoryLedgerTx struct {
	m *memoryLedger
}

func (t *memoryLedgerTx) NextNumber(ctx context.Context, companyID int64) (string, error) {
	t.m.seq[companyID]++
	return db.FormatNumber("JE", t.m.seq[companyID], 4), nil
}

func (t *memoryLedgerTx) LookupAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error) {
	out := make(map[int64]accounts.PostingTarget)
	for _, id := range ids {
		a, ok := t.m.accounts[id]
		if ok && a.companyID == companyID {
			out[id] = accounts.PostingTarget{ID: id, Type: a.typ, IsArchived: a.archived}
		}
	}
	return out, nil
}

func (t *memoryLedgerTx) LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error) {
	return t.LookupAccounts(ctx, companyID, ids)
}

func (t *memoryLedgerTx) ApplyDelta(ctx context.Context, companyID, accountID int64, delta shared.Amount) error {
	a := t.m.accounts[accountID]
	a.balance += delta
	t.m.accounts[accountID] = a
	return nil
}

func (t *memoryLedgerTx) IsLocked(ctx context.Context, companyID int64, date shared.Date) (bool, error) {
	thru, ok := t.m.lockedThru[companyID]
	return ok && !thru.Before(date), nil
}

func (t *memoryLedgerTx) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	t.m.nextEntryID++
	e.ID = t.m.nextEntryID
	t.m.entries[e.ID] = e
	return e, nil
}

func (t *memoryLedgerTx) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	lines := t.m.entries[e.ID].Lines
	e.Lines = lines
	t.m.entries[e.ID] = e
	e.Lines = nil
	return e, nil
}

func (t *memoryLedgerTx) ReplaceLines(ctx context.Context, entryID int64, in []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(in))
	for idx, l := range in {
		t.m.nextLineID++
		lines = append(lines, Line{ID: t.m.nextLineID, JournalID: entryID, LineNo: idx + 1, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
	}
	e := t.m.entries[entryID]
	e.Lines = lines
	t.m.entries[entryID] = e
	return lines, nil
}

func (t *memoryLedgerTx) GetForUpdate(ctx context.Context, companyID, id int64) (Entry, error) {
	return t.m.Get(ctx, companyID, id)
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(ctx context.Context, companyID int64) { c.calls++ }

type outcomeRecorder struct{ outcomes map[string]int }

func (r *outcomeRecorder) ObserveOperation(op string, err error) {
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	key := op + ":ok"
	if err != nil {
		key = op + ":err"
	}
	r.outcomes[key]++
}

const (
	company = int64(1)
	cash    = int64(1010)
	equity  = int64(3000)
	revenue = int64(4000)
	foreign = int64(9999)
)

func fixture(t *testing.T) (*Service, *memoryLedger, *countingInvalidator) {
	t.Helper()
	ledger := newMemoryLedger()
	ledger.accounts[cash] = memAccount{companyID: company, typ: accounts.AccountTypeAsset}
	ledger.accounts[equity] = memAccount{companyID: company, typ: accounts.AccountTypeEquity}
	ledger.accounts[revenue] = memAccount{companyID: company, typ: accounts.AccountTypeRevenue}
	ledger.accounts[foreign] = memAccount{companyID: 2, typ: accounts.AccountTypeAsset}
	cache := &countingInvalidator{}
	svc := NewService(ledger, nil, cache, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC) })
	return svc, ledger, cache
}

func entry(date shared.Date, lines ...LineInput) EntryInput {
	return EntryInput{Date: date, Memo: "test", Lines: lines}
}

func dr(account int64, amount shared.Amount) LineInput {
	return LineInput{AccountID: account, Debit: amount}
}

func cr(account int64, amount shared.Amount) LineInput {
	return LineInput{AccountID: account, Credit: amount}
}

var feb1 = shared.NewDate(2025, time.February, 1)

func TestPostBalancedEntryMovesBothBalances(t *testing.T) {
	svc, ledger, cache := fixture(t)
	ctx := context.Background()

	posted, err := svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 50000), cr(equity, 50000)))
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Equal(t, "JE-0001", posted.Number)
	require.Equal(t, shared.Amount(50000), posted.TotalDebit)
	require.NotNil(t, posted.PostedAt)
	require.Len(t, posted.Lines, 2)
	require.Equal(t, shared.Amount(50000), ledger.accounts[cash].balance)
	require.Equal(t, shared.Amount(50000), ledger.accounts[equity].balance)
	require.Equal(t, 1, cache.calls)

	_, err = svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 50000), cr(equity, 40000)))
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	require.Equal(t, shared.Amount(50000), ledger.accounts[cash].balance)
	require.Equal(t, shared.Amount(50000), ledger.accounts[equity].balance)
	require.Len(t, ledger.entries, 1)
}

func TestVoidRestoresBalances(t *testing.T) {
	svc, ledger, _ := fixture(t)
	ctx := context.Background()

	_, err := svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 10000), cr(equity, 10000)))
	require.NoError(t, err)
	sale, err := svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 2500), cr(revenue, 2000), cr(revenue, 500)))
	require.NoError(t, err)
	require.Equal(t, shared.Amount(12500), ledger.accounts[cash].balance)
	require.Equal(t, shared.Amount(2500), ledger.accounts[revenue].balance)

	voided, err := svc.Void(ctx, company, sale.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	require.Equal(t, shared.Amount(10000), ledger.accounts[cash].balance)
	require.Equal(t, shared.Amount(0), ledger.accounts[revenue].balance)

	_, err = svc.Void(ctx, company, sale.ID, "owner")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	stored, err := svc.Get(ctx, company, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 3)
}

func TestPeriodLockGatesPostAndVoid(t *testing.T) {
	svc, ledger, _ := fixture(t)
	ctx := context.Background()

	early, err := svc.CreateAndPost(ctx, company, "owner", entry(shared.NewDate(2025, time.January, 20), dr(cash, 100), cr(equity, 100)))
	require.NoError(t, err)

	ledger.lockedThru[company] = shared.NewDate(2025, time.January, 31)

	_, err = svc.CreateAndPost(ctx, company, "owner", entry(shared.NewDate(2025, time.January, 15), dr(cash, 100), cr(equity, 100)))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	_, err = svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 100), cr(equity, 100)))
	require.NoError(t, err)

	_, err = svc.Void(ctx, company, early.ID, "owner")
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Equal(t, shared.Amount(200), ledger.accounts[cash].balance)
}

func TestInvalidLines(t *testing.T) {
	svc, ledger, _ := fixture(t)
	ctx := context.Background()

	cases := map[string]EntryInput{
		"both zero":       entry(feb1, LineInput{AccountID: cash}, cr(equity, 100)),
		"both sides":      entry(feb1, LineInput{AccountID: cash, Debit: 100, Credit: 100}, cr(equity, 100)),
		"negative":        entry(feb1, dr(cash, -100), cr(equity, -100)),
		"unknown account": entry(feb1, dr(4242, 100), cr(equity, 100)),
		"other company":   entry(feb1, dr(foreign, 100), cr(equity, 100)),
		"single line":     entry(feb1, dr(cash, 100)),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateAndPost(ctx, company, "owner", in)
			require.ErrorIs(t, err, shared.ErrInvalidLine)
		})
	}
	require.Empty(t, ledger.entries)
	require.Equal(t, shared.Amount(0), ledger.accounts[cash].balance)
}

func TestValidationOrder(t *testing.T) {
	svc, ledger, _ := fixture(t)
	ctx := context.Background()
	ledger.lockedThru[company] = shared.NewDate(2025, time.December, 31)

	// Unknown account wins over imbalance and lock.
	_, err := svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(4242, 100), cr(equity, 50)))
	require.ErrorIs(t, err, shared.ErrInvalidLine)

	// Imbalance wins over lock.
	_, err = svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 100), cr(equity, 50)))
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)

	_, err = svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 100), cr(equity, 100)))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestArchivedAccountCannotBePosted(t *testing.T) {
	svc, ledger, _ := fixture(t)
	acct := ledger.accounts[revenue]
	acct.archived = true
	ledger.accounts[revenue] = acct

	_, err := svc.CreateAndPost(context.Background(), company, "owner", entry(feb1, dr(cash, 100), cr(revenue, 100)))
	require.ErrorIs(t, err, shared.ErrInvalidLine)
}

func TestDraftLifecycle(t *testing.T) {
	svc, ledger, cache := fixture(t)
	ctx := context.Background()

	draft, err := svc.CreateDraft(ctx, company, "clerk", entry(feb1, dr(cash, 100), cr(equity, 60)))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, draft.Status)
	require.Equal(t, "JE-0001", draft.Number)
	require.Equal(t, shared.Amount(0), ledger.accounts[cash].balance)
	require.Zero(t, cache.calls)

	_, err = svc.Post(ctx, company, draft.ID, "clerk")
	require.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	stored, err := svc.Get(ctx, company, draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, stored.Status)

	updated, err := svc.UpdateDraft(ctx, company, draft.ID, entry(feb1, dr(cash, 100), cr(equity, 100)))
	require.NoError(t, err)
	require.Equal(t, shared.Amount(100), updated.TotalCredit)

	posted, err := svc.Post(ctx, company, draft.ID, "clerk")
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Equal(t, shared.Amount(100), ledger.accounts[cash].balance)

	_, err = svc.Post(ctx, company, draft.ID, "clerk")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	_, err = svc.UpdateDraft(ctx, company, draft.ID, entry(feb1, dr(cash, 5), cr(equity, 5)))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	second, err := svc.CreateDraft(ctx, company, "clerk", entry(feb1, dr(cash, 1), cr(equity, 1)))
	require.NoError(t, err)
	require.Equal(t, "JE-0002", second.Number)
	voided, err := svc.Void(ctx, company, second.ID, "clerk")
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.Equal(t, shared.Amount(100), ledger.accounts[cash].balance)
}

func TestEntriesAreCompanyScoped(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()
	posted, err := svc.CreateAndPost(ctx, company, "owner", entry(feb1, dr(cash, 100), cr(equity, 100)))
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, posted.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Void(ctx, 2, posted.ID, "intruder")
	require.ErrorIs(t, err, shared.ErrNotFound)

	list, page, err := svc.List(ctx, company, ListFilter{Status: StatusPosted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, page.Total)

	_, _, err = svc.List(ctx, company, ListFilter{Status: "bogus"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBalancesMatchReplayOfPostedLines(t *testing.T) {
	svc, ledger, _ := fixture(t)
	recorder := &outcomeRecorder{}
	svc.metrics = recorder
	ctx := context.Background()

	ops := []EntryInput{
		entry(feb1, dr(cash, 1000), cr(equity, 1000)),
		entry(feb1, dr(cash, 250), cr(revenue, 250)),
		entry(feb1, dr(cash, 1), cr(revenue, 2)),
		entry(feb1, dr(revenue, 50), cr(cash, 50)),
	}
	var ids []int64
	for _, in := range ops {
		e, err := svc.CreateAndPost(ctx, company, "owner", in)
		if err == nil {
			ids = append(ids, e.ID)
		}
	}
	_, err := svc.Void(ctx, company, ids[1], "owner")
	require.NoError(t, err)

	replayed := make(map[int64]shared.Amount)
	for _, e := range ledger.entries {
		if e.Status != StatusPosted {
			continue
		}
		var debit, credit shared.Amount
		for _, l := range e.Lines {
			replayed[l.AccountID] += ledger.accounts[l.AccountID].typ.BalanceDelta(l.Debit, l.Credit)
			debit += l.Debit
			credit += l.Credit
		}
		require.Equal(t, debit, credit)
	}
	for id, acct := range ledger.accounts {
		require.Equal(t, replayed[id], acct.balance, "account %d", id)
	}
	require.Equal(t, 3, recorder.outcomes["journal.post:ok"])
	require.Equal(t, 1, recorder.outcomes["journal.post:err"])
}
