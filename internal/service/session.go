// Package service holds the application stores. Each store owns an in-memory,
// write-through mirror of one slice of remote state and is constructed once
// in main and passed by reference.
package service

import (
	"context"
	"sync"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// Session owns the current-user identity and the loading/authenticated
// status. Initialization completes a one-shot ready signal that the route
// guard awaits instead of polling the loading flag.
type Session struct {
	auth     port.AuthAPI
	profiles port.ProfileStore
	metrics  *observability.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	user    *domain.User
	loading bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewSession creates the session store. Initialize must be called once at
// process start before the route guard is used.
func NewSession(auth port.AuthAPI, profiles port.ProfileStore, metrics *observability.Metrics, logger *zap.Logger) *Session {
	return &Session{
		auth:     auth,
		profiles: profiles,
		metrics:  metrics,
		logger:   logger,
		loading:  true,
		ready:    make(chan struct{}),
	}
}

// Initialize restores the current session, loads the profile when one
// exists, and registers a standing auth-change subscription. Calling it
// twice registers two subscriptions; it is idempotent only by convention.
func (s *Session) Initialize(ctx context.Context) {
	ctx, span := sessionTracer.Start(ctx, "Session.Initialize")
	defer span.End()

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Error("session: restore failed", zap.Error(err))
	}
	if sess != nil && sess.UserID != "" {
		s.fetchProfile(ctx, sess.UserID)
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	s.auth.OnAuthStateChange(func(ev domain.AuthChangeEvent) {
		s.metrics.IncrAuthEvent(ev.Event)
		if ev.Session != nil && ev.Session.UserID != "" {
			s.fetchProfile(context.Background(), ev.Session.UserID)
			return
		}
		s.mu.Lock()
		s.user = nil
		s.mu.Unlock()
		s.logger.Info("session: user cleared by auth event", zap.String("event", ev.Event))
	})
}

// SignUp registers a new user. It does not populate the local user; that
// happens via the subscription or a subsequent sign-in.
func (s *Session) SignUp(ctx context.Context, email, password, name string) error {
	ctx, span := sessionTracer.Start(ctx, "Session.SignUp")
	defer span.End()

	if _, err := s.auth.SignUp(ctx, email, password, name); err != nil {
		return err
	}
	s.logger.Info("session: sign-up accepted", zap.String("email", email))
	return nil
}

// SignIn authenticates and fetches the profile before returning, so callers
// can rely on the authenticated state immediately afterwards.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	ctx, span := sessionTracer.Start(ctx, "Session.SignIn")
	defer span.End()

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	if sess != nil && sess.UserID != "" {
		s.fetchProfile(ctx, sess.UserID)
	}
	return nil
}

// SignOut delegates to the remote service and clears the stored user
// unconditionally. A remote failure is logged and swallowed; callers cannot
// observe it.
func (s *Session) SignOut(ctx context.Context) {
	ctx, span := sessionTracer.Start(ctx, "Session.SignOut")
	defer span.End()

	if err := s.auth.SignOut(ctx); err != nil {
		s.logger.Warn("session: remote sign-out failed, clearing local user anyway", zap.Error(err))
	}

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

// UpdateProfile patches the current user's row and merges the confirmed
// fields into local state. No-op when nobody is signed in.
func (s *Session) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) error {
	ctx, span := sessionTracer.Start(ctx, "Session.UpdateProfile")
	defer span.End()

	s.mu.Lock()
	current := s.user
	s.mu.Unlock()
	if current == nil {
		return nil
	}

	fields := map[string]any{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Company != nil {
		fields["company"] = *update.Company
	}
	if update.Logo != nil {
		fields["logo"] = *update.Logo
	}
	if len(fields) == 0 {
		return &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	if err := s.profiles.UpdateProfile(ctx, current.ID, fields); err != nil {
		return err
	}

	// Merge after the confirmed write, not before.
	s.mu.Lock()
	if s.user != nil {
		if update.Name != nil {
			s.user.Name = *update.Name
		}
		if update.Company != nil {
			s.user.Company = *update.Company
		}
		if update.Logo != nil {
			s.user.Logo = *update.Logo
		}
	}
	s.mu.Unlock()

	s.logger.Info("session: profile updated", zap.String("user_id", current.ID))
	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Session) CurrentUser() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is present.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// Loading reports whether initialization is still in progress.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Ready returns a channel closed exactly once when initialization has
// finished. The route guard awaits it instead of polling Loading.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) fetchProfile(ctx context.Context, userID string) {
	user, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Error("session: profile fetch failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("profiles")
		return
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}
