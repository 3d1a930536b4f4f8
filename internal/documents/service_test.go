package documents

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const (
	company    = int64(1)
	customer   = int64(10)
	vendor     = int64(11)
	receivable = int64(1200)
	payable    = int64(2000)
	revenue    = int64(4000)
	expense    = int64(6000)
	salesTax   = int64(2100)
	archived   = int64(4999)
)

type memoryRepo struct {
	docs     map[int64]Document
	contacts map[int64]contacts.Summary
	accounts map[int64]accounts.PostingTarget
	seq      map[string]int64
	nextID   int64
	nextLine int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs: make(map[int64]Document),
		contacts: map[int64]contacts.Summary{
			customer: {ID: customer, Type: contacts.TypeCustomer, DisplayName: "Acme Retail"},
			vendor:   {ID: vendor, Type: contacts.TypeVendor, DisplayName: "Paper Supply Co"},
		},
		accounts: map[int64]accounts.PostingTarget{
			receivable: {ID: receivable, Type: accounts.AccountTypeAsset},
			payable:    {ID: payable, Type: accounts.AccountTypeLiability},
			revenue:    {ID: revenue, Type: accounts.AccountTypeRevenue},
			expense:    {ID: expense, Type: accounts.AccountTypeExpense},
			salesTax:   {ID: salesTax, Type: accounts.AccountTypeLiability},
			archived:   {ID: archived, Type: accounts.AccountTypeRevenue, IsArchived: true},
		},
		seq: make(map[string]int64),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := make(map[int64]Document, len(m.docs))
	for k, v := range m.docs {
		saved[k] = v
	}
	if err := fn(ctx, &memoryTx{m: m}); err != nil {
		m.docs = saved
		return err
	}
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, companyID, id int64) (Document, error) {
	d, ok := m.docs[id]
	if !ok || d.CompanyID != companyID {
		return Document{}, fmt.Errorf("%w: document", shared.ErrNotFound)
	}
	summary := m.contacts[d.ContactID]
	d.Contact = &summary
	return d, nil
}

func (m *memoryRepo) List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, int, error) {
	var out []Document
	for _, d := range m.docs {
		if d.CompanyID != companyID || (filter.Kind != "" && d.Kind != filter.Kind) {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *memoryRepo) OpenItems(ctx context.Context, companyID int64, kind Kind) ([]OpenItem, error) {
	var out []OpenItem
	for _, d := range m.docs {
		if d.CompanyID != companyID || d.Kind != kind || (d.Status != StatusPosted && d.Status != StatusPartial) {
			continue
		}
		out = append(out, OpenItem{DocumentID: d.ID, Number: d.Number, ContactID: d.ContactID, DueDate: d.DueDate, BalanceDue: d.BalanceDue})
	}
	return out, nil
}

type memoryTx struct {
	m *memoryRepo
}

func (t *memoryTx) Querier() db.DBTX { return nil }

func (t *memoryTx) NextNumber(ctx context.Context, companyID int64, kind Kind) (string, error) {
	key := fmt.Sprintf("%d/%s", companyID, kind.Prefix())
	t.m.seq[key]++
	return db.FormatNumber(kind.Prefix(), t.m.seq[key], numberWidth), nil
}

func (t *memoryTx) ContactSummary(ctx context.Context, companyID, contactID int64) (contacts.Summary, error) {
	s, ok := t.m.contacts[contactID]
	if !ok || companyID != company {
		return contacts.Summary{}, fmt.Errorf("%w: contact", shared.ErrNotFound)
	}
	return s, nil
}

func (t *memoryTx) LookupAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error) {
	out := make(map[int64]accounts.PostingTarget)
	for _, id := range ids {
		if a, ok := t.m.accounts[id]; ok && companyID == company {
			out[id] = a
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(ctx context.Context, doc Document) (Document, error) {
	t.m.nextID++
	doc.ID = t.m.nextID
	t.m.docs[doc.ID] = doc
	return doc, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, documentID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		t.m.nextLine++
		l.ID, l.DocumentID = t.m.nextLine, documentID
		out = append(out, l)
	}
	doc := t.m.docs[documentID]
	doc.Lines = out
	t.m.docs[documentID] = doc
	return out, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, companyID, id int64) (Document, error) {
	d, ok := t.m.docs[id]
	if !ok || d.CompanyID != companyID {
		return Document{}, fmt.Errorf("%w: document", shared.ErrNotFound)
	}
	return d, nil
}

func (t *memoryTx) Update(ctx context.Context, doc Document) (Document, error) {
	doc.Contact = nil
	t.m.docs[doc.ID] = doc
	return doc, nil
}

type fakeLedger struct {
	posted  []journals.EntryInput
	voided  []int64
	postErr error
	nextID  int64
}

func (f *fakeLedger) PostInTx(ctx context.Context, q db.DBTX, companyID int64, actor string, in journals.EntryInput) (journals.Entry, error) {
	if f.postErr != nil {
		return journals.Entry{}, f.postErr
	}
	var debit, credit shared.Amount
	for _, l := range in.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	if debit != credit {
		return journals.Entry{}, shared.ErrUnbalancedEntry
	}
	f.nextID++
	f.posted = append(f.posted, in)
	return journals.Entry{ID: f.nextID, Status: journals.StatusPosted}, nil
}

func (f *fakeLedger) VoidInTx(ctx context.Context, q db.DBTX, companyID, id int64) (journals.Entry, error) {
	f.voided = append(f.voided, id)
	return journals.Entry{ID: id, Status: journals.StatusVoid}, nil
}

type countingCache struct{ calls int }

func (c *countingCache) Invalidate(ctx context.Context, companyID int64) { c.calls++ }

func amt(v int64) *shared.Amount {
	a := shared.Amount(v)
	return &a
}

func newTestService() (*Service, *memoryRepo, *fakeLedger, *countingCache) {
	repo := newMemoryRepo()
	ledger := &fakeLedger{}
	cache := &countingCache{}
	svc := NewService(repo, ledger, nil, cache, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) })
	return svc, repo, ledger, cache
}

func invoiceRequest(lines ...LineInput) CreateDocumentRequest {
	return CreateDocumentRequest{
		Kind:      KindInvoice,
		ContactID: customer,
		IssueDate: shared.NewDate(2025, 3, 1),
		Lines:     lines,
	}
}

func TestCreateComputesTotalsAndNumbers(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	qty := decimal.RequireFromString("2.5")
	doc, err := svc.Create(ctx, company, CreateDocumentRequest{
		Kind:      KindInvoice,
		ContactID: customer,
		IssueDate: shared.NewDate(2025, 3, 1),
		TaxTotal:  shared.Amount(500),
		Lines: []LineInput{
			{Description: "Consulting", Quantity: &qty, UnitPrice: amt(10000), AccountID: revenue},
			{Description: "Setup fee", Amount: amt(7500), AccountID: revenue},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-001", doc.Number)
	require.Equal(t, StatusDraft, doc.Status)
	require.Equal(t, shared.Amount(32500), doc.Subtotal)
	require.Equal(t, shared.Amount(33000), doc.Total)
	require.Equal(t, doc.Total, doc.BalanceDue)
	require.Zero(t, doc.AmountPaid)
	require.Equal(t, doc.IssueDate, doc.DueDate)
	require.Len(t, doc.Lines, 2)
	require.Equal(t, "Acme Retail", doc.Contact.DisplayName)

	second, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(100), AccountID: revenue}))
	require.NoError(t, err)
	require.Equal(t, "INV-002", second.Number)

	bill, err := svc.Create(ctx, company, CreateDocumentRequest{
		Kind:      KindBill,
		ContactID: vendor,
		IssueDate: shared.NewDate(2025, 3, 1),
		Lines:     []LineInput{{Amount: amt(100), AccountID: expense}},
	})
	require.NoError(t, err)
	require.Equal(t, "BILL-001", bill.Number)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateDocumentRequest
		want error
	}{
		{"no amount", invoiceRequest(LineInput{AccountID: revenue}), shared.ErrInvalidLine},
		{"negative amount", invoiceRequest(LineInput{Amount: amt(-1), AccountID: revenue}), shared.ErrInvalidLine},
		{"unknown account", invoiceRequest(LineInput{Amount: amt(100), AccountID: 777}), shared.ErrInvalidLine},
		{"archived account", invoiceRequest(LineInput{Amount: amt(100), AccountID: archived}), shared.ErrInvalidLine},
		{"vendor on invoice", CreateDocumentRequest{
			Kind: KindInvoice, ContactID: vendor, IssueDate: shared.NewDate(2025, 3, 1),
			Lines: []LineInput{{Amount: amt(100), AccountID: revenue}},
		}, shared.ErrValidation},
		{"missing contact", CreateDocumentRequest{
			Kind: KindInvoice, ContactID: 404, IssueDate: shared.NewDate(2025, 3, 1),
			Lines: []LineInput{{Amount: amt(100), AccountID: revenue}},
		}, shared.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, company, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	due := shared.NewDate(2025, 2, 1)
	req := invoiceRequest(LineInput{Amount: amt(100), AccountID: revenue})
	req.DueDate = &due
	_, err := svc.Create(ctx, company, req)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.docs)
}

func TestPostInvoiceBuildsBalancedEntry(t *testing.T) {
	svc, repo, ledger, cache := newTestService()
	ctx := context.Background()

	req := invoiceRequest(LineInput{Amount: amt(90000), AccountID: revenue}, LineInput{Amount: amt(10000), AccountID: revenue})
	req.TaxTotal = 5000
	doc, err := svc.Create(ctx, company, req)
	require.NoError(t, err)

	_, err = svc.Post(ctx, company, doc.ID, "alice", PostRequest{ControlAccountID: receivable})
	require.ErrorIs(t, err, shared.ErrInvalidLine, "tax needs an account")

	tax := salesTax
	posted, err := svc.Post(ctx, company, doc.ID, "alice", PostRequest{ControlAccountID: receivable, TaxAccountID: &tax})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.JournalEntryID)
	require.Equal(t, receivable, *posted.ControlAccountID)
	require.Equal(t, 1, cache.calls)

	require.Len(t, ledger.posted, 1)
	entry := ledger.posted[0]
	require.Equal(t, journals.SourceInvoice, entry.Source)
	require.Equal(t, doc.IssueDate, entry.Date)
	require.Equal(t, journals.LineInput{AccountID: receivable, Debit: 105000, Memo: doc.Number}, entry.Lines[0])
	require.Len(t, entry.Lines, 4)
	for _, l := range entry.Lines[1:] {
		require.Zero(t, l.Debit)
	}

	_, err = svc.Post(ctx, company, doc.ID, "alice", PostRequest{ControlAccountID: receivable, TaxAccountID: &tax})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.Equal(t, StatusPosted, repo.docs[doc.ID].Status)
}

func TestPostBillCreditsControlAccount(t *testing.T) {
	svc, _, ledger, _ := newTestService()
	ctx := context.Background()

	bill, err := svc.Create(ctx, company, CreateDocumentRequest{
		Kind:      KindBill,
		ContactID: vendor,
		IssueDate: shared.NewDate(2025, 3, 3),
		Lines:     []LineInput{{Amount: amt(4200), AccountID: expense}},
	})
	require.NoError(t, err)
	_, err = svc.Post(ctx, company, bill.ID, "bob", PostRequest{ControlAccountID: payable})
	require.NoError(t, err)

	entry := ledger.posted[0]
	require.Equal(t, journals.SourceBill, entry.Source)
	require.Equal(t, []journals.LineInput{
		{AccountID: payable, Credit: 4200, Memo: bill.Number},
		{AccountID: expense, Debit: 4200},
	}, entry.Lines)
}

func TestPostFailureLeavesDocumentUntouched(t *testing.T) {
	svc, repo, ledger, cache := newTestService()
	ctx := context.Background()

	doc, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(100), AccountID: revenue}))
	require.NoError(t, err)

	ledger.postErr = fmt.Errorf("%w: entry dated 2025-03-01", shared.ErrPeriodLocked)
	_, err = svc.Post(ctx, company, doc.ID, "alice", PostRequest{ControlAccountID: receivable})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Equal(t, StatusDraft, repo.docs[doc.ID].Status)
	require.Nil(t, repo.docs[doc.ID].JournalEntryID)
	require.Zero(t, cache.calls)
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, repo, ledger, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(1000), AccountID: revenue}))
	require.NoError(t, err)

	status := func(s Status) UpdateStatusRequest { return UpdateStatusRequest{Status: &s} }

	updated, err := svc.UpdateStatus(ctx, company, doc.ID, "alice", status(StatusSent))
	require.NoError(t, err)
	require.Equal(t, StatusSent, updated.Status)

	_, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", status(StatusPaid))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	_, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", status(StatusPosted))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	memo := "  net 30  "
	updated, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", UpdateStatusRequest{Memo: &memo})
	require.NoError(t, err)
	require.Equal(t, "net 30", updated.Memo)
	require.Equal(t, StatusSent, updated.Status)

	_, err = svc.Post(ctx, company, doc.ID, "alice", PostRequest{ControlAccountID: receivable})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", status(StatusDraft))
	require.ErrorIs(t, err, shared.ErrInvalidStatus, "posted documents stay in the ledger")

	voided, err := svc.UpdateStatus(ctx, company, doc.ID, "alice", status(StatusVoid))
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.Equal(t, []int64{*repo.docs[doc.ID].JournalEntryID}, ledger.voided)

	_, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", status(StatusSent))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestPartialNeedsPostingOrPayment(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	partial := StatusPartial

	doc, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(1000), AccountID: revenue}))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", UpdateStatusRequest{Status: &partial})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.Equal(t, StatusDraft, repo.docs[doc.ID].Status)

	stored := repo.docs[doc.ID]
	require.NoError(t, stored.ApplyPayment(250))
	repo.docs[doc.ID] = stored
	updated, err := svc.UpdateStatus(ctx, company, doc.ID, "alice", UpdateStatusRequest{Status: &partial})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, updated.Status)

	posted, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(500), AccountID: revenue}))
	require.NoError(t, err)
	_, err = svc.Post(ctx, company, posted.ID, "alice", PostRequest{ControlAccountID: receivable})
	require.NoError(t, err)
	updated, err = svc.UpdateStatus(ctx, company, posted.ID, "alice", UpdateStatusRequest{Status: &partial})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, updated.Status)
}

func TestVoidRejectedOncePaid(t *testing.T) {
	svc, repo, ledger, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(1000), AccountID: revenue}))
	require.NoError(t, err)
	_, err = svc.Post(ctx, company, doc.ID, "alice", PostRequest{ControlAccountID: receivable})
	require.NoError(t, err)

	stored := repo.docs[doc.ID]
	require.NoError(t, stored.ApplyPayment(100))
	repo.docs[doc.ID] = stored

	void := StatusVoid
	_, err = svc.UpdateStatus(ctx, company, doc.ID, "alice", UpdateStatusRequest{Status: &void})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.Empty(t, ledger.voided)
}

func TestApplyPaymentKeepsBalanceInvariant(t *testing.T) {
	doc := Document{Number: "INV-001", Total: 1000, BalanceDue: 1000, Status: StatusPosted}

	require.NoError(t, doc.ApplyPayment(600))
	require.Equal(t, shared.Amount(600), doc.AmountPaid)
	require.Equal(t, shared.Amount(400), doc.BalanceDue)
	require.Equal(t, StatusPosted, doc.Status)

	require.NoError(t, doc.ApplyPayment(400))
	require.Zero(t, doc.BalanceDue)
	require.Equal(t, StatusPaid, doc.Status)

	err := doc.ApplyPayment(1)
	require.True(t, errors.Is(err, shared.ErrOverApplication))
	require.Equal(t, shared.Amount(1000), doc.AmountPaid)
}

func TestAgingBuckets(t *testing.T) {
	asOf := shared.NewDate(2025, 6, 30)
	items := []OpenItem{
		{DocumentID: 1, DueDate: shared.NewDate(2025, 7, 15), BalanceDue: 100},
		{DocumentID: 2, DueDate: shared.NewDate(2025, 6, 30), BalanceDue: 200},
		{DocumentID: 3, DueDate: shared.NewDate(2025, 6, 1), BalanceDue: 300},
		{DocumentID: 4, DueDate: shared.NewDate(2025, 5, 1), BalanceDue: 400},
		{DocumentID: 5, DueDate: shared.NewDate(2025, 4, 1), BalanceDue: 500},
		{DocumentID: 6, DueDate: shared.NewDate(2025, 1, 1), BalanceDue: 600},
		{DocumentID: 7, DueDate: shared.NewDate(2025, 1, 1), BalanceDue: 0},
	}
	report := BuildAging(KindInvoice, asOf, items)
	require.Equal(t, shared.Amount(300), report.Current)
	require.Equal(t, shared.Amount(300), report.Days1To30)
	require.Equal(t, shared.Amount(400), report.Days31To60)
	require.Equal(t, shared.Amount(500), report.Days61To90)
	require.Equal(t, shared.Amount(600), report.Over90)
	require.Equal(t, shared.Amount(2100), report.Total)
	require.Len(t, report.Items, 6)
	require.Equal(t, 29, report.Items[2].DaysOverdue)
}

func TestCompanyScoping(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	doc, err := svc.Create(ctx, company, invoiceRequest(LineInput{Amount: amt(100), AccountID: revenue}))
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, doc.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Post(ctx, 2, doc.ID, "mallory", PostRequest{ControlAccountID: receivable})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Create(ctx, 0, invoiceRequest(LineInput{Amount: amt(100), AccountID: revenue}))
	require.ErrorIs(t, err, shared.ErrValidation)
}
