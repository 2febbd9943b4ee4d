// Package guard decides whether a page navigation is allowed for the
// current session, mirroring a client-side router's navigation guard.
package guard

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Decision is the outcome of evaluating a navigation.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// route carries the access rules of a registered page path.
type route struct {
	requiresAuth bool
	public       bool
}

// Authenticator is the slice of the session service the guard needs.
type Authenticator interface {
	IsAuthenticated() bool
	Ready() <-chan struct{}
}

// Guard evaluates page navigations against a fixed route table. Paths not
// in the table redirect to the root.
type Guard struct {
	session Authenticator
	routes  map[string]route
	logger  *zap.Logger
}

// New builds the guard with the application's route table: the auth pages
// are public-only, the root requires authentication.
func New(session Authenticator, logger *zap.Logger) *Guard {
	return &Guard{
		session: session,
		logger:  logger,
		routes: map[string]route{
			"/login":    {public: true},
			"/register": {public: true},
			"/":         {requiresAuth: true},
		},
	}
}

// Evaluate resolves a navigation once the session is ready. It blocks until
// the session has finished its initial restore, so the decision never sees
// the transient loading state. ctx cancellation aborts the wait.
//
// When several navigations are evaluated concurrently, each resolves
// independently; the caller is expected to act on the latest one.
func (g *Guard) Evaluate(ctx context.Context, path string) (Decision, error) {
	select {
	case <-g.session.Ready():
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}

	r, known := g.routes[path]
	if !known {
		return Decision{RedirectTo: "/"}, nil
	}

	authed := g.session.IsAuthenticated()
	switch {
	case r.requiresAuth && !authed:
		return Decision{RedirectTo: "/login?redirect=" + url.QueryEscape(path)}, nil
	case r.public && authed:
		return Decision{RedirectTo: "/"}, nil
	default:
		return Decision{Allowed: true}, nil
	}
}

// Middleware applies the guard to page routes, issuing a 302 when the
// navigation is redirected.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := g.Evaluate(r.Context(), r.URL.Path)
		if err != nil {
			g.logger.Debug("guard: evaluation aborted", zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if !decision.Allowed {
			http.Redirect(w, r, decision.RedirectTo, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
