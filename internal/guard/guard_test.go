package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSession struct {
	authed bool
	ready  chan struct{}
}

func newFakeSession(authed bool) *fakeSession {
	ch := make(chan struct{})
	close(ch)
	return &fakeSession{authed: authed, ready: ch}
}

func (f *fakeSession) IsAuthenticated() bool  { return f.authed }
func (f *fakeSession) Ready() <-chan struct{} { return f.ready }

func TestEvaluateAnonymousOnProtectedRoute(t *testing.T) {
	g := New(newFakeSession(false), zap.NewNop())

	d, err := g.Evaluate(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected navigation to be redirected")
	}
	if d.RedirectTo != "/login?redirect=%2F" {
		t.Errorf("expected redirect to login with original path, got %q", d.RedirectTo)
	}
}

func TestEvaluateAuthenticatedOnPublicRoute(t *testing.T) {
	g := New(newFakeSession(true), zap.NewNop())

	for _, path := range []string{"/login", "/register"} {
		d, err := g.Evaluate(context.Background(), path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Allowed || d.RedirectTo != "/" {
			t.Errorf("path %s: expected redirect to /, got %+v", path, d)
		}
	}
}

func TestEvaluateAllowed(t *testing.T) {
	cases := []struct {
		name   string
		authed bool
		path   string
	}{
		{"authenticated on root", true, "/"},
		{"anonymous on login", false, "/login"},
		{"anonymous on register", false, "/register"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := New(newFakeSession(tc.authed), zap.NewNop())
			d, err := g.Evaluate(context.Background(), tc.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !d.Allowed {
				t.Errorf("expected navigation to be allowed, got redirect to %q", d.RedirectTo)
			}
		})
	}
}

func TestEvaluateUnknownPathRedirectsHome(t *testing.T) {
	g := New(newFakeSession(true), zap.NewNop())

	d, err := g.Evaluate(context.Background(), "/no-such-page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.RedirectTo != "/" {
		t.Errorf("expected redirect to /, got %+v", d)
	}
}

func TestEvaluateWaitsForSessionReady(t *testing.T) {
	f := &fakeSession{ready: make(chan struct{})}
	g := New(f, zap.NewNop())

	done := make(chan Decision, 1)
	go func() {
		d, _ := g.Evaluate(context.Background(), "/login")
		done <- d
	}()

	select {
	case <-done:
		t.Fatal("evaluation completed before the session was ready")
	case <-time.After(20 * time.Millisecond):
	}

	f.authed = true
	close(f.ready)

	select {
	case d := <-done:
		if d.Allowed || d.RedirectTo != "/" {
			t.Errorf("expected redirect to / after restore, got %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("evaluation did not complete after session became ready")
	}
}

func TestEvaluateContextCancelled(t *testing.T) {
	f := &fakeSession{ready: make(chan struct{})}
	g := New(f, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Evaluate(ctx, "/"); err == nil {
		t.Fatal("expected a context error while the session is not ready")
	}
}

func TestMiddlewareRedirects(t *testing.T) {
	g := New(newFakeSession(false), zap.NewNop())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?redirect=%2F" {
		t.Errorf("unexpected redirect location %q", loc)
	}
}
