package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const (
	company    = int64(1)
	customer   = int64(10)
	vendor     = int64(11)
	bank       = int64(1010)
	receivable = int64(1200)
)

type memoryStore struct {
	payments map[int64]Payment
	docs     map[int64]documents.Document
	apps     []Application
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{payments: make(map[int64]Payment), docs: make(map[int64]documents.Document)}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	payments := make(map[int64]Payment, len(m.payments))
	for k, v := range m.payments {
		payments[k] = v
	}
	docs := make(map[int64]documents.Document, len(m.docs))
	for k, v := range m.docs {
		docs[k] = v
	}
	apps := append([]Application(nil), m.apps...)
	if err := fn(ctx, &memoryTx{m: m}); err != nil {
		m.payments, m.docs, m.apps = payments, docs, apps
		return err
	}
	return nil
}

func (m *memoryStore) Get(ctx context.Context, companyID, id int64) (Payment, error) {
	p, ok := m.payments[id]
	if !ok || p.CompanyID != companyID {
		return Payment{}, fmt.Errorf("%w: payment", shared.ErrNotFound)
	}
	return p, nil
}

func (m *memoryStore) List(ctx context.Context, companyID int64, filter ListFilter) ([]Payment, int, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.CompanyID == companyID && (filter.Kind == "" || p.Kind == filter.Kind) {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type memoryTx struct {
	m *memoryStore
}

func (t *memoryTx) Querier() db.DBTX { return nil }

func (t *memoryTx) ContactType(ctx context.Context, companyID, contactID int64) (contacts.Type, error) {
	switch {
	case companyID != company:
	case contactID == customer:
		return contacts.TypeCustomer, nil
	case contactID == vendor:
		return contacts.TypeVendor, nil
	}
	return "", fmt.Errorf("%w: contact", shared.ErrNotFound)
}

func (t *memoryTx) LookupAccount(ctx context.Context, companyID, accountID int64) (accounts.PostingTarget, bool, error) {
	if companyID != company || accountID != bank {
		return accounts.PostingTarget{}, false, nil
	}
	return accounts.PostingTarget{ID: bank, Type: accounts.AccountTypeAsset}, true, nil
}

func (t *memoryTx) Insert(ctx context.Context, p Payment) (Payment, error) {
	t.m.nextID++
	p.ID = t.m.nextID
	t.m.payments[p.ID] = p
	return p, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, companyID, id int64) (Payment, error) {
	return t.m.Get(ctx, companyID, id)
}

func (t *memoryTx) Update(ctx context.Context, p Payment) (Payment, error) {
	t.m.payments[p.ID] = p
	return p, nil
}

func (t *memoryTx) LockDocument(ctx context.Context, companyID, id int64) (documents.Document, error) {
	d, ok := t.m.docs[id]
	if !ok || d.CompanyID != companyID {
		return documents.Document{}, fmt.Errorf("%w: document", shared.ErrNotFound)
	}
	return d, nil
}

func (t *memoryTx) SaveDocument(ctx context.Context, doc documents.Document) (documents.Document, error) {
	t.m.docs[doc.ID] = doc
	return doc, nil
}

func (t *memoryTx) InsertApplication(ctx context.Context, app Application) (Application, error) {
	t.m.nextID++
	app.ID = t.m.nextID
	t.m.apps = append(t.m.apps, app)
	return app, nil
}

type fakeLedger struct {
	posted []journals.EntryInput
	err    error
}

func (f *fakeLedger) PostInTx(ctx context.Context, q db.DBTX, companyID int64, actor string, in journals.EntryInput) (journals.Entry, error) {
	if f.err != nil {
		return journals.Entry{}, f.err
	}
	f.posted = append(f.posted, in)
	return journals.Entry{ID: int64(len(f.posted)), Status: journals.StatusPosted}, nil
}

type recordingAudit struct{ actions []string }

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func (m *memoryStore) addDocument(kind documents.Kind, status documents.Status, total shared.Amount) documents.Document {
	m.nextID++
	contact := customer
	if kind == documents.KindBill {
		contact = vendor
	}
	control := receivable
	doc := documents.Document{
		ID:               m.nextID,
		CompanyID:        company,
		Kind:             kind,
		ContactID:        contact,
		Number:           fmt.Sprintf("%s-%03d", kind.Prefix(), m.nextID),
		IssueDate:        shared.NewDate(2025, 3, 1),
		DueDate:          shared.NewDate(2025, 3, 31),
		Subtotal:         total,
		Total:            total,
		BalanceDue:       total,
		Status:           status,
		ControlAccountID: &control,
	}
	m.docs[doc.ID] = doc
	return doc
}

func newTestService() (*Service, *memoryStore, *fakeLedger, *recordingAudit) {
	store := newMemoryStore()
	ledger := &fakeLedger{}
	audit := &recordingAudit{}
	svc := NewService(store, ledger, audit, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) })
	return svc, store, ledger, audit
}

func record(t *testing.T, svc *Service, kind documents.Kind, amount shared.Amount) Payment {
	t.Helper()
	p, err := svc.RecordPayment(context.Background(), company, RecordPaymentRequest{
		Kind:        kind,
		PaymentDate: shared.NewDate(2025, 3, 10),
		Amount:      amount,
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, p.Status)
	return p
}

func TestApplyUntilPaidThenOverApplication(t *testing.T) {
	svc, store, _, audit := newTestService()
	ctx := context.Background()
	invoice := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)

	first := record(t, svc, documents.KindInvoice, 600)
	res, err := svc.Apply(ctx, company, first.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 600})
	require.NoError(t, err)
	require.Equal(t, shared.Amount(600), res.Document.AmountPaid)
	require.Equal(t, shared.Amount(400), res.Document.BalanceDue)
	require.Equal(t, documents.StatusPosted, res.Document.Status)
	require.Equal(t, StatusApplied, res.Payment.Status)

	second := record(t, svc, documents.KindInvoice, 400)
	res, err = svc.Apply(ctx, company, second.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 400})
	require.NoError(t, err)
	require.Zero(t, res.Document.BalanceDue)
	require.Equal(t, documents.StatusPaid, res.Document.Status)

	third := record(t, svc, documents.KindInvoice, 50)
	_, err = svc.Apply(ctx, company, third.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 1})
	require.ErrorIs(t, err, shared.ErrOverApplication)
	require.Equal(t, StatusDraft, store.payments[third.ID].Status)
	require.Len(t, store.apps, 2)
	require.Equal(t, []string{"payment.apply", "payment.apply"}, audit.actions)
}

func TestApplyToDraftInvoice(t *testing.T) {
	svc, store, ledger, _ := newTestService()
	ctx := context.Background()
	invoice := store.addDocument(documents.KindInvoice, documents.StatusDraft, 1000_00)
	invoice.ControlAccountID = nil
	store.docs[invoice.ID] = invoice

	first := record(t, svc, documents.KindInvoice, 600_00)
	res, err := svc.Apply(ctx, company, first.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 600_00})
	require.NoError(t, err)
	require.Equal(t, shared.Amount(600_00), res.Document.AmountPaid)
	require.Equal(t, shared.Amount(400_00), res.Document.BalanceDue)
	require.Equal(t, documents.StatusDraft, res.Document.Status)
	require.Nil(t, res.Application.JournalEntryID)

	second := record(t, svc, documents.KindInvoice, 400_00)
	res, err = svc.Apply(ctx, company, second.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 400_00})
	require.NoError(t, err)
	require.Zero(t, res.Document.BalanceDue)
	require.Equal(t, documents.StatusPaid, res.Document.Status)

	third := record(t, svc, documents.KindInvoice, 50_00)
	_, err = svc.Apply(ctx, company, third.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 1})
	require.ErrorIs(t, err, shared.ErrOverApplication)
	require.Empty(t, ledger.posted)
}

func TestApplyCannotExceedPaymentAmount(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	a := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)
	b := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)

	p := record(t, svc, documents.KindInvoice, 500)
	_, err := svc.Apply(ctx, company, p.ID, "alice", ApplyRequest{DocumentID: a.ID, AmountApplied: 300})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, company, p.ID, "alice", ApplyRequest{DocumentID: b.ID, AmountApplied: 300})
	require.ErrorIs(t, err, shared.ErrOverApplication)

	_, err = svc.Apply(ctx, company, p.ID, "alice", ApplyRequest{DocumentID: b.ID, AmountApplied: 200})
	require.NoError(t, err)
	require.Equal(t, shared.Amount(500), store.payments[p.ID].AmountApplied)
	require.Zero(t, store.payments[p.ID].Unapplied())
	require.Equal(t, shared.Amount(800), store.docs[b.ID].BalanceDue)
}

func TestApplyRejections(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	void := store.addDocument(documents.KindInvoice, documents.StatusVoid, 1000)
	bill := store.addDocument(documents.KindBill, documents.StatusPosted, 1000)
	invoice := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)
	p := record(t, svc, documents.KindInvoice, 1000)

	cases := []struct {
		name      string
		paymentID int64
		req       ApplyRequest
		want      error
	}{
		{"missing payment", 999, ApplyRequest{DocumentID: invoice.ID, AmountApplied: 10}, shared.ErrNotFound},
		{"missing document", p.ID, ApplyRequest{DocumentID: 999, AmountApplied: 10}, shared.ErrNotFound},
		{"void document", p.ID, ApplyRequest{DocumentID: void.ID, AmountApplied: 10}, shared.ErrInvalidStatus},
		{"wrong kind", p.ID, ApplyRequest{DocumentID: bill.ID, AmountApplied: 10}, shared.ErrValidation},
		{"zero amount", p.ID, ApplyRequest{DocumentID: invoice.ID}, shared.ErrValidation},
		{"exceeds balance", p.ID, ApplyRequest{DocumentID: invoice.ID, AmountApplied: 1001}, shared.ErrOverApplication},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Apply(ctx, company, tc.paymentID, "alice", tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, store.apps)
	require.Equal(t, shared.Amount(1000), store.docs[invoice.ID].BalanceDue)

	_, err := svc.Apply(ctx, 2, p.ID, "mallory", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyPostsSettlementEntry(t *testing.T) {
	svc, store, ledger, _ := newTestService()
	ctx := context.Background()
	invoice := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)

	settlement := bank
	customerID := customer
	p, err := svc.RecordPayment(ctx, company, RecordPaymentRequest{
		Kind:                documents.KindInvoice,
		ContactID:           &customerID,
		PaymentDate:         shared.NewDate(2025, 3, 12),
		Amount:              1000,
		SettlementAccountID: &settlement,
	})
	require.NoError(t, err)

	res, err := svc.Apply(ctx, company, p.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 250})
	require.NoError(t, err)
	require.NotNil(t, res.Application.JournalEntryID)
	require.Len(t, ledger.posted, 1)
	entry := ledger.posted[0]
	require.Equal(t, journals.SourcePayment, entry.Source)
	require.Equal(t, shared.NewDate(2025, 3, 12), entry.Date)
	require.Equal(t, bank, entry.Lines[0].AccountID)
	require.Equal(t, shared.Amount(250), entry.Lines[0].Debit)
	require.Equal(t, receivable, entry.Lines[1].AccountID)
	require.Equal(t, shared.Amount(250), entry.Lines[1].Credit)
}

func TestApplyRollsBackWhenLedgerRejects(t *testing.T) {
	svc, store, ledger, _ := newTestService()
	ctx := context.Background()
	invoice := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)

	settlement := bank
	p, err := svc.RecordPayment(ctx, company, RecordPaymentRequest{
		Kind:                documents.KindInvoice,
		PaymentDate:         shared.NewDate(2025, 1, 15),
		Amount:              1000,
		SettlementAccountID: &settlement,
	})
	require.NoError(t, err)

	ledger.err = fmt.Errorf("%w: entry dated 2025-01-15", shared.ErrPeriodLocked)
	_, err = svc.Apply(ctx, company, p.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 400})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Equal(t, shared.Amount(1000), store.docs[invoice.ID].BalanceDue)
	require.Zero(t, store.docs[invoice.ID].AmountPaid)
	require.Zero(t, store.payments[p.ID].AmountApplied)
	require.Empty(t, store.apps)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	vendorID, unknown := vendor, int64(5555)

	_, err := svc.RecordPayment(ctx, company, RecordPaymentRequest{Kind: documents.KindInvoice, PaymentDate: shared.NewDate(2025, 3, 1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, company, RecordPaymentRequest{
		Kind: documents.KindInvoice, ContactID: &vendorID, PaymentDate: shared.NewDate(2025, 3, 1), Amount: 10,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, company, RecordPaymentRequest{
		Kind: documents.KindBill, ContactID: &vendorID, PaymentDate: shared.NewDate(2025, 3, 1), Amount: 10, SettlementAccountID: &unknown,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	p, err := svc.RecordPayment(ctx, company, RecordPaymentRequest{
		Kind: documents.KindBill, ContactID: &vendorID, PaymentDate: shared.NewDate(2025, 3, 1), Amount: 10, Memo: "  check 1042 ",
	})
	require.NoError(t, err)
	require.Equal(t, "check 1042", p.Memo)
}

func TestVoidOnlyUnappliedPayments(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	invoice := store.addDocument(documents.KindInvoice, documents.StatusPosted, 1000)

	applied := record(t, svc, documents.KindInvoice, 100)
	_, err := svc.Apply(ctx, company, applied.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 100})
	require.NoError(t, err)
	_, err = svc.Void(ctx, company, applied.ID, "alice")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	idle := record(t, svc, documents.KindInvoice, 100)
	voided, err := svc.Void(ctx, company, idle.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)

	_, err = svc.Void(ctx, company, idle.ID, "alice")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	_, err = svc.Apply(ctx, company, idle.ID, "alice", ApplyRequest{DocumentID: invoice.ID, AmountApplied: 10})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestApplicationSumsNeverExceedTotals(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	docs := []documents.Document{
		store.addDocument(documents.KindInvoice, documents.StatusPosted, 700),
		store.addDocument(documents.KindInvoice, documents.StatusPartial, 300),
	}
	pays := []Payment{
		record(t, svc, documents.KindInvoice, 400),
		record(t, svc, documents.KindInvoice, 500),
	}
	amounts := []shared.Amount{150, 250, 90, 400, 60, 300, 10}
	for i, amount := range amounts {
		p := pays[i%len(pays)]
		d := docs[i%len(docs)]
		_, _ = svc.Apply(ctx, company, p.ID, "alice", ApplyRequest{DocumentID: d.ID, AmountApplied: amount})
	}

	perPayment := map[int64]shared.Amount{}
	perDocument := map[int64]shared.Amount{}
	for _, app := range store.apps {
		perPayment[app.PaymentID] += app.AmountApplied
		perDocument[app.DocumentID] += app.AmountApplied
	}
	for _, p := range pays {
		stored := store.payments[p.ID]
		require.LessOrEqual(t, perPayment[p.ID], stored.Amount)
		require.Equal(t, perPayment[p.ID], stored.AmountApplied)
	}
	for _, d := range docs {
		stored := store.docs[d.ID]
		require.LessOrEqual(t, perDocument[d.ID], stored.Total)
		require.Equal(t, perDocument[d.ID], stored.AmountPaid)
		require.Equal(t, shared.MaxAmount(0, stored.Total-stored.AmountPaid), stored.BalanceDue)
	}
}
