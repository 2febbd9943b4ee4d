package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/resilience"
)

// ============================================================
// ClientStore implementation: clients table via PostgREST
// ============================================================

// ListClients returns all client rows ordered by creation time descending.
func (c *Client) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClients")
	defer span.End()

	var clients []domain.Client

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := "clients?select=*&order=created_at.desc"
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				clients = []domain.Client{}
				return nil
			}

			var rows []domain.Client
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode clients: %w", err)
			}
			clients = rows
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}

	return clients, nil
}

// InsertClient inserts a client row and returns the server representation
// (the server assigns id and created_at).
func (c *Client) InsertClient(ctx context.Context, row map[string]any) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertClient")
	defer span.End()

	body, err := c.doPost(ctx, "clients", row)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}

	var rows []domain.Client
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode inserted client: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: fmt.Errorf("insert returned no representation")}
	}
	return &rows[0], nil
}

// UpdateClient patches a client row by id and re-fetches the updated row.
func (c *Client) UpdateClient(ctx context.Context, id string, updates map[string]any) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateClient")
	defer span.End()

	path := fmt.Sprintf("clients?id=eq.%s", id)
	if err := c.doPatch(ctx, path, updates); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}

	fetchPath := fmt.Sprintf("clients?id=eq.%s&limit=1", id)
	body, err := c.doRequest(ctx, http.MethodGet, fetchPath)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}

	var rows []domain.Client
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode client: %w", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return &rows[0], nil
}

// DeleteClient removes a client row by id.
func (c *Client) DeleteClient(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteClient")
	defer span.End()

	path := fmt.Sprintf("clients?id=eq.%s", id)
	if err := c.doDelete(ctx, path); err != nil {
		return &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}
	return nil
}
