package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// invoiceSelect expands the client relation on every read.
const invoiceSelect = "select=*,client:clients(*)"

// ============================================================
// InvoiceStore implementation: invoices table via PostgREST
// ============================================================

// ListInvoices returns all invoices with their client, newest first.
func (c *Client) ListInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInvoices")
	defer span.End()

	var invoices []*domain.Invoice

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("invoices?%s&order=created_at.desc", invoiceSelect)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				invoices = []*domain.Invoice{}
				return nil
			}

			var rows []*domain.Invoice
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode invoices: %w", err)
			}
			invoices = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/invoices", Err: err}
	}

	return invoices, nil
}

// GetInvoice fetches a single invoice with its client.
func (c *Client) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetInvoice")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	path := fmt.Sprintf("invoices?%s&id=eq.%s&limit=1", invoiceSelect, id)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/invoices", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}

	var rows []*domain.Invoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: id}
	}
	return rows[0], nil
}

// InsertInvoice inserts an invoice row, then re-fetches it with the client
// relation expanded (the insert representation has no expansion).
func (c *Client) InsertInvoice(ctx context.Context, row map[string]any) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertInvoice")
	defer span.End()

	body, err := c.doPost(ctx, "invoices", row)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/invoices", Err: err}
	}

	var rows []domain.Invoice
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode inserted invoice: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/invoices", Err: fmt.Errorf("insert returned no representation")}
	}

	return c.GetInvoice(ctx, rows[0].ID)
}

// UpdateInvoiceStatus patches only the status column of an invoice.
func (c *Client) UpdateInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateInvoiceStatus")
	defer span.End()

	path := fmt.Sprintf("invoices?id=eq.%s", id)
	if err := c.doPatch(ctx, path, map[string]any{"status": string(status)}); err != nil {
		return &domain.ErrExternalService{Service: "supabase/invoices", Err: err}
	}
	return nil
}

// DeleteInvoice removes an invoice row by id.
func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteInvoice")
	defer span.End()

	path := fmt.Sprintf("invoices?id=eq.%s", id)
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/invoices", Err: err}
	}
	return nil
}
