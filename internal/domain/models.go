// Package domain contains the core types shared by services, stores and
// handlers. Field tags match the Supabase table columns.
package domain

import "time"

// User is a row in the profiles table, keyed by the auth user id.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Logo      string    `json:"logo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is a customer record owned by exactly one user.
type Client struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientForm is the payload for creating or updating a client.
type ClientForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// InvoiceStatus enumerates the lifecycle states of an invoice.
// Any status may follow any other; there is no transition graph.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "draft"
	StatusUnpaid  InvoiceStatus = "unpaid"
	StatusPaid    InvoiceStatus = "paid"
	StatusOverdue InvoiceStatus = "overdue"
)

// Valid reports whether s is one of the known statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusUnpaid, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// InvoiceItem is a single line item. Total = Quantity × Price is the
// caller's responsibility and is not validated here.
type InvoiceItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}

// Invoice is a row in the invoices table with the client relation expanded.
// Subtotal/Tax/Total are computed once at creation and never recomputed;
// the only edit after creation is a status change.
type Invoice struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ClientID      string        `json:"client_id"`
	Client        *Client       `json:"client,omitempty"`
	InvoiceNumber string        `json:"invoice_number"`
	IssueDate     string        `json:"issue_date"`
	DueDate       string        `json:"due_date"`
	Items         []InvoiceItem `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	TaxRate       float64       `json:"tax_rate"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
	Status        InvoiceStatus `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// InvoiceForm is the payload for creating an invoice. The invoice number is
// supplied by the caller, not generated during creation.
type InvoiceForm struct {
	ClientID      string        `json:"client_id"`
	InvoiceNumber string        `json:"invoice_number"`
	IssueDate     string        `json:"issue_date"`
	DueDate       string        `json:"due_date"`
	Items         []InvoiceItem `json:"items"`
	TaxRate       float64       `json:"tax_rate"`
	Notes         string        `json:"notes"`
}

// DashboardStats is derived from the in-memory invoice collection on demand.
// It is never persisted and never cached.
type DashboardStats struct {
	TotalInvoices    int     `json:"totalInvoices"`
	TotalPaid        float64 `json:"totalPaid"`
	TotalUnpaid      float64 `json:"totalUnpaid"`
	TotalOverdue     int     `json:"totalOverdue"`
	RevenueThisMonth float64 `json:"revenueThisMonth"`
}

// Session is the auth session returned by the remote auth service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
}

// Auth change event names, mirroring the remote service's notification kinds.
const (
	AuthEventSignedIn       = "SIGNED_IN"
	AuthEventSignedOut      = "SIGNED_OUT"
	AuthEventInitialSession = "INITIAL_SESSION"
)

// AuthChangeEvent notifies subscribers of a sign-in, sign-out or session
// restore. Session is nil on sign-out.
type AuthChangeEvent struct {
	Event   string
	Session *Session
}

// ProfileUpdate carries the partial fields of a profile update.
// Nil pointers mean "leave unchanged".
type ProfileUpdate struct {
	Name    *string `json:"name,omitempty"`
	Company *string `json:"company,omitempty"`
	Logo    *string `json:"logo,omitempty"`
}
