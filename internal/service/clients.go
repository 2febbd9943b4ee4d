package service

import (
	"context"
	"sync"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var clientsTracer = otel.Tracer("service/clients")

// Clients owns the in-memory collection of client records, newest-created
// first, kept consistent with the remote table by write-through updates.
type Clients struct {
	store   port.ClientStore
	session *Session
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	clients []domain.Client
	loading bool
}

// NewClients creates the clients store.
func NewClients(store port.ClientStore, session *Session, metrics *observability.Metrics, logger *zap.Logger) *Clients {
	return &Clients{
		store:   store,
		session: session,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchAll replaces the local collection with the remote list, newest first.
// A remote failure leaves the previous collection untouched and is not
// surfaced to the caller.
func (c *Clients) FetchAll(ctx context.Context) {
	ctx, span := clientsTracer.Start(ctx, "Clients.FetchAll")
	defer span.End()
	c.metrics.IncrStoreOp("clients", "fetch")

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	rows, err := c.store.ListClients(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.logger.Warn("clients: fetch failed, keeping previous collection", zap.Error(err))
		c.metrics.IncrExternalError("clients")
		return
	}
	c.clients = rows
}

// Add inserts a new client owned by the current user and prepends it to the
// local collection. The prepend preserves the newest-first order because the
// server assigns created_at at insert time.
func (c *Clients) Add(ctx context.Context, form domain.ClientForm) (*domain.Client, error) {
	ctx, span := clientsTracer.Start(ctx, "Clients.Add")
	defer span.End()
	c.metrics.IncrStoreOp("clients", "add")

	user := c.session.CurrentUser()
	if user == nil {
		return nil, &domain.ErrNotAuthenticated{}
	}

	row := map[string]any{
		"user_id": user.ID,
		"name":    form.Name,
		"email":   form.Email,
		"company": form.Company,
		"address": form.Address,
		"phone":   form.Phone,
	}

	created, err := c.store.InsertClient(ctx, row)
	if err != nil {
		c.metrics.IncrExternalError("clients")
		return nil, err
	}

	c.mu.Lock()
	c.clients = append([]domain.Client{*created}, c.clients...)
	c.mu.Unlock()

	c.logger.Info("clients: added",
		zap.String("client_id", created.ID),
		zap.String("user_id", user.ID),
	)
	return created, nil
}

// Update patches a client by id and replaces the matching local entry in
// place, preserving its position.
func (c *Clients) Update(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := clientsTracer.Start(ctx, "Clients.Update")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))
	c.metrics.IncrStoreOp("clients", "update")

	updated, err := c.store.UpdateClient(ctx, id, updates)
	if err != nil {
		c.metrics.IncrExternalError("clients")
		return err
	}

	c.mu.Lock()
	for i := range c.clients {
		if c.clients[i].ID == id {
			c.clients[i] = *updated
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// Delete removes a client remotely, then drops it from the local collection.
func (c *Clients) Delete(ctx context.Context, id string) error {
	ctx, span := clientsTracer.Start(ctx, "Clients.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))
	c.metrics.IncrStoreOp("clients", "delete")

	if err := c.store.DeleteClient(ctx, id); err != nil {
		c.metrics.IncrExternalError("clients")
		return err
	}

	c.mu.Lock()
	kept := c.clients[:0]
	for _, cl := range c.clients {
		if cl.ID != id {
			kept = append(kept, cl)
		}
	}
	c.clients = kept
	c.mu.Unlock()
	return nil
}

// All returns a copy of the local collection, newest first.
func (c *Clients) All() []domain.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Client, len(c.clients))
	copy(out, c.clients)
	return out
}

// Loading reports whether a fetch is in progress.
func (c *Clients) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}
