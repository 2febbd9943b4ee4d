package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/cache"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockInvoiceStore struct {
	rows      []*domain.Invoice
	single    *domain.Invoice
	listErr   error
	getErr    error
	insertErr error
	statusErr error
	deleteErr error

	inserted   map[string]any
	getCalls   int
	lastStatus domain.InvoiceStatus
}

func (m *mockInvoiceStore) ListInvoices(_ context.Context) ([]*domain.Invoice, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*domain.Invoice, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *mockInvoiceStore) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.single != nil {
		return m.single, nil
	}
	return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
}

func (m *mockInvoiceStore) InsertInvoice(_ context.Context, row map[string]any) (*domain.Invoice, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.inserted = row
	return &domain.Invoice{
		ID:            "inv-new",
		UserID:        row["user_id"].(string),
		InvoiceNumber: row["invoice_number"].(string),
		Items:         row["items"].([]domain.InvoiceItem),
		Subtotal:      row["subtotal"].(float64),
		Tax:           row["tax"].(float64),
		Total:         row["total"].(float64),
		Status:        domain.InvoiceStatus(row["status"].(string)),
	}, nil
}

func (m *mockInvoiceStore) UpdateInvoiceStatus(_ context.Context, _ string, status domain.InvoiceStatus) error {
	if m.statusErr != nil {
		return m.statusErr
	}
	m.lastStatus = status
	return nil
}

func (m *mockInvoiceStore) DeleteInvoice(_ context.Context, _ string) error {
	return m.deleteErr
}

func newInvoices(store *mockInvoiceStore, session *service.Session) *service.Invoices {
	return service.NewInvoices(store, session, cache.New[*domain.Invoice](time.Minute), observability.NewMetrics(), zap.NewNop())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- Tests ---

func TestInvoicesCreate_ComputesTotals(t *testing.T) {
	store := &mockInvoiceStore{}
	invoices := newInvoices(store, signedInSession(t))

	created, err := invoices.Create(context.Background(), domain.InvoiceForm{
		ClientID:      "c1",
		InvoiceNumber: "INV-0001",
		TaxRate:       10,
		Items: []domain.InvoiceItem{
			{Description: "Design", Quantity: 2, Price: 50, Total: 100},
			{Description: "Hosting", Quantity: 1, Price: 25, Total: 25},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !almostEqual(created.Subtotal, 125) {
		t.Errorf("expected subtotal 125, got %v", created.Subtotal)
	}
	if !almostEqual(created.Tax, 12.5) {
		t.Errorf("expected tax 12.5, got %v", created.Tax)
	}
	if !almostEqual(created.Total, 137.5) {
		t.Errorf("expected total 137.5, got %v", created.Total)
	}
	if created.Status != domain.StatusUnpaid {
		t.Errorf("expected status unpaid, got %s", created.Status)
	}
	if store.inserted["user_id"] != "user-1" {
		t.Errorf("expected owner stamped on the row, got %v", store.inserted)
	}

	// Blank item ids get generated; provided totals are trusted as-is.
	items := store.inserted["items"].([]domain.InvoiceItem)
	for i, item := range items {
		if item.ID == "" {
			t.Errorf("item %d: expected generated id", i)
		}
	}

	all := invoices.All()
	if len(all) != 1 || all[0].ID != "inv-new" {
		t.Errorf("expected created invoice prepended, got %+v", all)
	}
}

func TestInvoicesCreate_ZeroTaxRate(t *testing.T) {
	store := &mockInvoiceStore{}
	invoices := newInvoices(store, signedInSession(t))

	created, err := invoices.Create(context.Background(), domain.InvoiceForm{
		ClientID:      "c1",
		InvoiceNumber: "INV-0001",
		Items:         []domain.InvoiceItem{{Description: "Work", Quantity: 1, Price: 80, Total: 80}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !almostEqual(created.Tax, 0) || !almostEqual(created.Total, 80) {
		t.Errorf("expected tax 0 and total 80, got tax=%v total=%v", created.Tax, created.Total)
	}
}

func TestInvoicesCreate_RequiresAuthentication(t *testing.T) {
	store := &mockInvoiceStore{}
	invoices := newInvoices(store, anonymousSession())

	_, err := invoices.Create(context.Background(), domain.InvoiceForm{ClientID: "c1", InvoiceNumber: "INV-0001"})

	var notAuthed *domain.ErrNotAuthenticated
	if !errors.As(err, &notAuthed) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if store.inserted != nil {
		t.Error("expected no remote call without a signed-in user")
	}
}

func TestInvoicesFetchAll_ErrorKeepsPreviousCollection(t *testing.T) {
	store := &mockInvoiceStore{rows: []*domain.Invoice{{ID: "i1"}}}
	invoices := newInvoices(store, anonymousSession())

	invoices.FetchAll(context.Background())
	if len(invoices.All()) != 1 {
		t.Fatal("seed fetch failed")
	}

	store.listErr = errors.New("connection refused")
	invoices.FetchAll(context.Background())

	if got := invoices.All(); len(got) != 1 || got[0].ID != "i1" {
		t.Errorf("expected previous collection kept on error, got %+v", got)
	}
}

func TestInvoicesFetchOne_AbsentOnError(t *testing.T) {
	store := &mockInvoiceStore{getErr: errors.New("timeout")}
	invoices := newInvoices(store, anonymousSession())

	if inv := invoices.FetchOne(context.Background(), "i1"); inv != nil {
		t.Errorf("expected absent result on remote error, got %+v", inv)
	}
}

func TestInvoicesFetchOne_CachesResult(t *testing.T) {
	store := &mockInvoiceStore{single: &domain.Invoice{ID: "i1", InvoiceNumber: "INV-0001"}}
	invoices := newInvoices(store, anonymousSession())

	first := invoices.FetchOne(context.Background(), "i1")
	second := invoices.FetchOne(context.Background(), "i1")

	if first == nil || second == nil {
		t.Fatal("expected invoice both times")
	}
	if store.getCalls != 1 {
		t.Errorf("expected one remote read, got %d", store.getCalls)
	}
}

func TestInvoicesUpdateStatus_MutatesInPlace(t *testing.T) {
	store := &mockInvoiceStore{rows: []*domain.Invoice{
		{ID: "i1", Status: domain.StatusUnpaid, Total: 100},
		{ID: "i2", Status: domain.StatusUnpaid, Total: 50},
	}}
	invoices := newInvoices(store, signedInSession(t))
	invoices.FetchAll(context.Background())

	before := invoices.All()

	if err := invoices.UpdateStatus(context.Background(), "i1", domain.StatusPaid); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Same invoice value, mutated in place.
	if before[0].Status != domain.StatusPaid {
		t.Errorf("expected existing invoice mutated, got %s", before[0].Status)
	}
	if before[0].Total != 100 {
		t.Errorf("expected other fields untouched, got total %v", before[0].Total)
	}
	if before[1].Status != domain.StatusUnpaid {
		t.Error("expected unrelated invoice untouched")
	}
}

func TestInvoicesUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	store := &mockInvoiceStore{}
	invoices := newInvoices(store, signedInSession(t))

	err := invoices.UpdateStatus(context.Background(), "i1", "cancelled")

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestInvoicesUpdateStatus_RemoteErrorLeavesLocalUntouched(t *testing.T) {
	store := &mockInvoiceStore{rows: []*domain.Invoice{{ID: "i1", Status: domain.StatusUnpaid}}}
	invoices := newInvoices(store, signedInSession(t))
	invoices.FetchAll(context.Background())

	store.statusErr = errors.New("patch failed")
	if err := invoices.UpdateStatus(context.Background(), "i1", domain.StatusPaid); err == nil {
		t.Fatal("expected error")
	}
	if invoices.All()[0].Status != domain.StatusUnpaid {
		t.Error("expected status untouched after failed patch")
	}
}

func TestInvoicesDelete_RemovesLocally(t *testing.T) {
	store := &mockInvoiceStore{rows: []*domain.Invoice{{ID: "i1"}, {ID: "i2"}}}
	invoices := newInvoices(store, signedInSession(t))
	invoices.FetchAll(context.Background())

	if err := invoices.Delete(context.Background(), "i2"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	all := invoices.All()
	if len(all) != 1 || all[0].ID != "i1" {
		t.Errorf("expected i2 removed, got %+v", all)
	}
}

func TestGenerateNumber_SequenceFromCollectionSize(t *testing.T) {
	store := &mockInvoiceStore{}
	invoices := newInvoices(store, anonymousSession())

	if got := invoices.GenerateNumber(); got != "INV-0001" {
		t.Errorf("expected INV-0001 for empty collection, got %s", got)
	}

	for i := 0; i < 9; i++ {
		store.rows = append(store.rows, &domain.Invoice{ID: fmt.Sprintf("i%d", i)})
	}
	invoices.FetchAll(context.Background())

	if got := invoices.GenerateNumber(); got != "INV-0010" {
		t.Errorf("expected INV-0010 for 9 invoices, got %s", got)
	}
}

func TestStats_AggregatesByStatus(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)

	store := &mockInvoiceStore{rows: []*domain.Invoice{
		{ID: "i1", Status: domain.StatusPaid, Total: 100, CreatedAt: thisMonth},
		{ID: "i2", Status: domain.StatusPaid, Total: 40, CreatedAt: lastMonth},
		{ID: "i3", Status: domain.StatusUnpaid, Total: 75, CreatedAt: thisMonth},
		{ID: "i4", Status: domain.StatusOverdue, Total: 30, CreatedAt: lastMonth},
		{ID: "i5", Status: domain.StatusDraft, Total: 10, CreatedAt: thisMonth},
	}}
	invoices := newInvoices(store, anonymousSession())
	invoices.FetchAll(context.Background())

	stats := invoices.StatsAt(now)

	if stats.TotalInvoices != 5 {
		t.Errorf("expected 5 invoices, got %d", stats.TotalInvoices)
	}
	if !almostEqual(stats.TotalPaid, 140) {
		t.Errorf("expected paid 140, got %v", stats.TotalPaid)
	}
	if !almostEqual(stats.TotalUnpaid, 75) {
		t.Errorf("expected unpaid 75, got %v", stats.TotalUnpaid)
	}
	if stats.TotalOverdue != 1 {
		t.Errorf("expected overdue count 1, got %d", stats.TotalOverdue)
	}
	if !almostEqual(stats.RevenueThisMonth, 100) {
		t.Errorf("expected this-month revenue 100, got %v", stats.RevenueThisMonth)
	}
}

func TestStats_MonthComparisonIgnoresYear(t *testing.T) {
	// The month filter compares calendar month only, so a paid invoice from
	// March of a previous year still counts toward March revenue.
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	marchLastYear := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	store := &mockInvoiceStore{rows: []*domain.Invoice{
		{ID: "i1", Status: domain.StatusPaid, Total: 60, CreatedAt: marchLastYear},
	}}
	invoices := newInvoices(store, anonymousSession())
	invoices.FetchAll(context.Background())

	if stats := invoices.StatsAt(now); !almostEqual(stats.RevenueThisMonth, 60) {
		t.Errorf("expected 60, got %v", stats.RevenueThisMonth)
	}
}
