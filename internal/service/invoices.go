package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var invoicesTracer = otel.Tracer("service/invoices")

// invoiceNumberPrefix is the fixed prefix of generated invoice numbers.
const invoiceNumberPrefix = "INV"

// Invoices owns the in-memory collection of invoices (newest-created first,
// each with its client embedded) and the derived dashboard statistics.
// Stats are recomputed from the collection on every call, never cached, so
// they are always consistent with the latest fetch.
type Invoices struct {
	store   port.InvoiceStore
	session *Session
	cache   port.Cache[*domain.Invoice]
	metrics *observability.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	invoices []*domain.Invoice
	loading  bool
}

// NewInvoices creates the invoices store. The cache fronts single-invoice
// reads only; the collection itself is the write-through mirror.
func NewInvoices(store port.InvoiceStore, session *Session, cache port.Cache[*domain.Invoice], metrics *observability.Metrics, logger *zap.Logger) *Invoices {
	return &Invoices{
		store:   store,
		session: session,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchAll replaces the local collection with the remote list, newest
// first. A remote failure leaves the previous collection untouched and is
// not surfaced to the caller.
func (v *Invoices) FetchAll(ctx context.Context) {
	ctx, span := invoicesTracer.Start(ctx, "Invoices.FetchAll")
	defer span.End()
	v.metrics.IncrStoreOp("invoices", "fetch")

	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	rows, err := v.store.ListInvoices(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false
	if err != nil {
		v.logger.Warn("invoices: fetch failed, keeping previous collection", zap.Error(err))
		v.metrics.IncrExternalError("invoices")
		return
	}
	v.invoices = rows
}

// FetchOne loads a single invoice with its client. Any remote error yields
// an absent result; the error detail is discarded. A short-TTL cache fronts
// this read and is invalidated by UpdateStatus and Delete.
func (v *Invoices) FetchOne(ctx context.Context, id string) *domain.Invoice {
	ctx, span := invoicesTracer.Start(ctx, "Invoices.FetchOne")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	if cached, ok := v.cache.Get(id); ok {
		v.metrics.IncrCacheHit("invoice")
		return cached
	}
	v.metrics.IncrCacheMiss("invoice")

	inv, err := v.store.GetInvoice(ctx, id)
	if err != nil {
		v.logger.Debug("invoices: fetch one failed", zap.String("invoice_id", id), zap.Error(err))
		return nil
	}
	v.cache.Set(id, inv)
	return inv
}

// Create computes the invoice totals from the form, inserts the row with
// status fixed to unpaid, and prepends the created invoice to the local
// collection. The invoice number comes from the caller; no uniqueness check
// is performed here.
func (v *Invoices) Create(ctx context.Context, form domain.InvoiceForm) (*domain.Invoice, error) {
	ctx, span := invoicesTracer.Start(ctx, "Invoices.Create")
	defer span.End()
	v.metrics.IncrStoreOp("invoices", "create")

	user := v.session.CurrentUser()
	if user == nil {
		return nil, &domain.ErrNotAuthenticated{}
	}

	subtotal := 0.0
	for _, item := range form.Items {
		subtotal += item.Total
	}
	tax := subtotal * (form.TaxRate / 100)
	total := subtotal + tax

	items := make([]domain.InvoiceItem, len(form.Items))
	copy(items, form.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
	}

	row := map[string]any{
		"user_id":        user.ID,
		"client_id":      form.ClientID,
		"invoice_number": form.InvoiceNumber,
		"issue_date":     form.IssueDate,
		"due_date":       form.DueDate,
		"items":          items,
		"subtotal":       subtotal,
		"tax_rate":       form.TaxRate,
		"tax":            tax,
		"total":          total,
		"notes":          form.Notes,
		"status":         string(domain.StatusUnpaid),
	}

	created, err := v.store.InsertInvoice(ctx, row)
	if err != nil {
		v.metrics.IncrExternalError("invoices")
		return nil, err
	}

	v.mu.Lock()
	v.invoices = append([]*domain.Invoice{created}, v.invoices...)
	v.mu.Unlock()

	v.logger.Info("invoices: created",
		zap.String("invoice_id", created.ID),
		zap.String("invoice_number", created.InvoiceNumber),
		zap.Float64("total", created.Total),
	)
	return created, nil
}

// UpdateStatus patches only the status field remotely, then mutates the
// matching local invoice's status in place. The invoice value's identity is
// preserved; every other field stays untouched. No transition validation:
// any status may follow any other.
func (v *Invoices) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus) error {
	ctx, span := invoicesTracer.Start(ctx, "Invoices.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))
	v.metrics.IncrStoreOp("invoices", "update_status")

	if !status.Valid() {
		return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	if err := v.store.UpdateInvoiceStatus(ctx, id, status); err != nil {
		v.metrics.IncrExternalError("invoices")
		return err
	}

	v.mu.Lock()
	for _, inv := range v.invoices {
		if inv.ID == id {
			inv.Status = status
			break
		}
	}
	v.mu.Unlock()
	v.cache.Delete(id)
	return nil
}

// Delete removes an invoice remotely, then drops it from the local
// collection.
func (v *Invoices) Delete(ctx context.Context, id string) error {
	ctx, span := invoicesTracer.Start(ctx, "Invoices.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))
	v.metrics.IncrStoreOp("invoices", "delete")

	if err := v.store.DeleteInvoice(ctx, id); err != nil {
		v.metrics.IncrExternalError("invoices")
		return err
	}

	v.mu.Lock()
	kept := v.invoices[:0]
	for _, inv := range v.invoices {
		if inv.ID != id {
			kept = append(kept, inv)
		}
	}
	v.invoices = kept
	v.mu.Unlock()
	v.cache.Delete(id)
	return nil
}

// GenerateNumber produces a candidate invoice number: the fixed prefix plus
// a zero-padded 4-digit sequence equal to the local collection size plus
// one. Purely a local suggestion with no uniqueness guarantee against
// concurrent creations or numbers freed by deletions.
func (v *Invoices) GenerateNumber() string {
	v.mu.Lock()
	count := len(v.invoices) + 1
	v.mu.Unlock()
	return fmt.Sprintf("%s-%04d", invoiceNumberPrefix, count)
}

// Stats recomputes the dashboard statistics from the current collection.
func (v *Invoices) Stats() domain.DashboardStats {
	return v.StatsAt(time.Now())
}

// StatsAt recomputes the dashboard statistics against a fixed reference
// time. Revenue for "this month" counts paid invoices whose creation month
// matches now's month.
func (v *Invoices) StatsAt(now time.Time) domain.DashboardStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := domain.DashboardStats{TotalInvoices: len(v.invoices)}
	for _, inv := range v.invoices {
		switch inv.Status {
		case domain.StatusPaid:
			stats.TotalPaid += inv.Total
			if inv.CreatedAt.Month() == now.Month() {
				stats.RevenueThisMonth += inv.Total
			}
		case domain.StatusUnpaid:
			stats.TotalUnpaid += inv.Total
		case domain.StatusOverdue:
			stats.TotalOverdue++
		}
	}
	return stats
}

// All returns the local collection, newest first. The returned slice is a
// copy, but the elements are the shared invoice values.
func (v *Invoices) All() []*domain.Invoice {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*domain.Invoice, len(v.invoices))
	copy(out, v.invoices)
	return out
}

// Loading reports whether a fetch is in progress.
func (v *Invoices) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}
