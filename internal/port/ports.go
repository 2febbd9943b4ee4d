// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete Supabase adapter.
package port

import (
	"context"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
)

// AuthAPI covers the remote authentication surface: sign up/in/out, session
// retrieval and auth-state change notifications.
type AuthAPI interface {
	SignUp(ctx context.Context, email, password, name string) (*domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*domain.Session, error)
	// OnAuthStateChange registers a standing subscription. Handlers are
	// invoked for every subsequent sign-in/sign-out; registering twice
	// registers two subscriptions.
	OnAuthStateChange(handler func(domain.AuthChangeEvent))
}

// ProfileStore reads and writes rows of the profiles table.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) error
}

// ClientStore performs table operations on the clients table.
type ClientStore interface {
	ListClients(ctx context.Context) ([]domain.Client, error)
	InsertClient(ctx context.Context, row map[string]any) (*domain.Client, error)
	UpdateClient(ctx context.Context, id string, updates map[string]any) (*domain.Client, error)
	DeleteClient(ctx context.Context, id string) error
}

// InvoiceStore performs table operations on the invoices table, with the
// client relation expanded on reads.
type InvoiceStore interface {
	ListInvoices(ctx context.Context) ([]*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	InsertInvoice(ctx context.Context, row map[string]any) (*domain.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, status domain.InvoiceStatus) error
	DeleteInvoice(ctx context.Context, id string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Prefs is a small persistent key-value store for local preferences.
type Prefs interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}
