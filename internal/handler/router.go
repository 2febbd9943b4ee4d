package handler

import (
	"net/http"
	"time"

	"github.com/ferrand/invoiceflow-bff-go/internal/guard"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router needs.
type Deps struct {
	Session  *service.Session
	Clients  *service.Clients
	Invoices *service.Invoices
	Theme    *service.Theme
	Guard    *guard.Guard
	Metrics  *observability.Metrics

	JWTSecret  string
	CORSOrigin string

	Logger *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract the invoicing frontend expects.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(d.Session))
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Authentication & session
		r.Post("/auth/register", authRegisterHandler(d.Session, d.Logger))
		r.Post("/auth/login", authLoginHandler(d.Session, d.Logger))
		r.Post("/auth/logout", authLogoutHandler(d.Session, d.Logger))
		r.Get("/session", getSessionHandler(d.Session, d.Logger))

		// Theme is readable and togglable without signing in.
		r.Get("/theme", getThemeHandler(d.Theme, d.Logger))
		r.Post("/theme/toggle", toggleThemeHandler(d.Theme, d.Logger))
		r.Put("/theme", setThemeHandler(d.Theme, d.Logger))

		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(d.JWTSecret, d.Logger))

			r.Put("/profile", updateProfileHandler(d.Session, d.Logger))

			r.Get("/clients", listClientsHandler(d.Clients, d.Logger))
			r.Post("/clients", createClientHandler(d.Clients, d.Logger))
			r.Put("/clients/{id}", updateClientHandler(d.Clients, d.Logger))
			r.Delete("/clients/{id}", deleteClientHandler(d.Clients, d.Logger))

			r.Get("/invoices", listInvoicesHandler(d.Invoices, d.Logger))
			r.Post("/invoices", createInvoiceHandler(d.Invoices, d.Logger))
			r.Get("/invoices/number/next", nextInvoiceNumberHandler(d.Invoices, d.Logger))
			r.Get("/invoices/{id}", getInvoiceHandler(d.Invoices, d.Logger))
			r.Patch("/invoices/{id}/status", updateInvoiceStatusHandler(d.Invoices, d.Logger))
			r.Delete("/invoices/{id}", deleteInvoiceHandler(d.Invoices, d.Logger))

			r.Get("/dashboard", dashboardHandler(d.Clients, d.Invoices, d.Metrics, d.Logger))
		})
	})

	// --- Page routes (navigation guard) ---
	if d.Guard != nil {
		r.Group(func(r chi.Router) {
			r.Use(d.Guard.Middleware)
			r.Get("/", pageHandler("dashboard"))
			r.Get("/login", pageHandler("login"))
			r.Get("/register", pageHandler("register"))
		})
		// Unknown paths go through the guard too; it redirects them home.
		r.NotFound(d.Guard.Middleware(pageHandler("")).ServeHTTP)
	}

	return r
}

// pageHandler answers for a page route the guard allowed through.
func pageHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"page": name})
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "healthy",
			"checked_at": time.Now().Format(time.RFC3339),
		})
	}
}

// readyzHandler reports ready once the session restore has finished, so a
// load balancer never routes page navigations to an instance whose guard
// would still block.
func readyzHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session != nil {
			select {
			case <-session.Ready():
			default:
				writeError(w, http.StatusServiceUnavailable, "session restore in progress")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
