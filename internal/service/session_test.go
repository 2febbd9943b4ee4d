package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockAuth struct {
	session    *domain.Session
	signUpErr  error
	signInErr  error
	signOutErr error
	getErr     error

	signOutCalls int
	handlers     []func(domain.AuthChangeEvent)
}

func (m *mockAuth) SignUp(_ context.Context, _, _, _ string) (*domain.Session, error) {
	return m.session, m.signUpErr
}

func (m *mockAuth) SignInWithPassword(_ context.Context, _, _ string) (*domain.Session, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return m.session, nil
}

func (m *mockAuth) SignOut(_ context.Context) error {
	m.signOutCalls++
	return m.signOutErr
}

func (m *mockAuth) GetSession(_ context.Context) (*domain.Session, error) {
	return m.session, m.getErr
}

func (m *mockAuth) OnAuthStateChange(h func(domain.AuthChangeEvent)) {
	m.handlers = append(m.handlers, h)
}

func (m *mockAuth) emit(ev domain.AuthChangeEvent) {
	for _, h := range m.handlers {
		h(ev)
	}
}

type mockProfiles struct {
	user      *domain.User
	getErr    error
	updateErr error

	updates map[string]any
}

func (m *mockProfiles) GetProfile(_ context.Context, _ string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u := *m.user
	return &u, nil
}

func (m *mockProfiles) UpdateProfile(_ context.Context, _ string, updates map[string]any) error {
	m.updates = updates
	return m.updateErr
}

func newSession(auth *mockAuth, profiles *mockProfiles) *service.Session {
	return service.NewSession(auth, profiles, observability.NewMetrics(), zap.NewNop())
}

// --- Tests ---

func TestInitialize_RestoresExistingSession(t *testing.T) {
	auth := &mockAuth{session: &domain.Session{AccessToken: "tok", UserID: "user-1"}}
	profiles := &mockProfiles{user: &domain.User{ID: "user-1", Name: "Ada"}}
	s := newSession(auth, profiles)

	if !s.Loading() {
		t.Error("expected loading before initialization")
	}

	s.Initialize(context.Background())

	if s.Loading() {
		t.Error("expected loading cleared after initialization")
	}
	if !s.IsAuthenticated() {
		t.Fatal("expected authenticated after restore")
	}
	if u := s.CurrentUser(); u == nil || u.Name != "Ada" {
		t.Errorf("expected restored profile, got %+v", u)
	}

	select {
	case <-s.Ready():
	default:
		t.Error("expected ready channel closed after initialization")
	}
}

func TestInitialize_NoSession(t *testing.T) {
	auth := &mockAuth{}
	s := newSession(auth, &mockProfiles{})

	s.Initialize(context.Background())

	if s.IsAuthenticated() {
		t.Error("expected anonymous session")
	}
	select {
	case <-s.Ready():
	default:
		t.Error("expected ready channel closed even without a session")
	}
}

func TestInitialize_RestoreErrorStillCompletes(t *testing.T) {
	auth := &mockAuth{getErr: errors.New("network down")}
	s := newSession(auth, &mockProfiles{})

	s.Initialize(context.Background())

	if s.Loading() {
		t.Error("expected loading cleared despite restore error")
	}
	select {
	case <-s.Ready():
	default:
		t.Error("expected ready channel closed despite restore error")
	}
}

func TestSignIn_FetchesProfile(t *testing.T) {
	auth := &mockAuth{session: &domain.Session{UserID: "user-1"}}
	profiles := &mockProfiles{user: &domain.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"}}
	s := newSession(auth, profiles)

	if err := s.SignIn(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if u := s.CurrentUser(); u == nil || u.Email != "ada@example.com" {
		t.Errorf("expected profile loaded before SignIn returns, got %+v", u)
	}
}

func TestSignIn_BadCredentials(t *testing.T) {
	auth := &mockAuth{signInErr: &domain.ErrUnauthorized{Message: "invalid login credentials"}}
	s := newSession(auth, &mockProfiles{})

	err := s.SignIn(context.Background(), "ada@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if s.IsAuthenticated() {
		t.Error("expected anonymous after failed sign-in")
	}
}

func TestSignOut_SwallowsRemoteError(t *testing.T) {
	auth := &mockAuth{session: &domain.Session{UserID: "user-1"}, signOutErr: errors.New("revocation failed")}
	profiles := &mockProfiles{user: &domain.User{ID: "user-1"}}
	s := newSession(auth, profiles)

	if err := s.SignIn(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	// Returns nothing: a remote failure must not be observable, and the
	// local user is cleared regardless.
	s.SignOut(context.Background())

	if auth.signOutCalls != 1 {
		t.Errorf("expected one remote sign-out call, got %d", auth.signOutCalls)
	}
	if s.IsAuthenticated() {
		t.Error("expected user cleared despite remote error")
	}
}

func TestAuthStateChange_ClearsUserOnSignOutEvent(t *testing.T) {
	auth := &mockAuth{session: &domain.Session{UserID: "user-1"}}
	profiles := &mockProfiles{user: &domain.User{ID: "user-1"}}
	s := newSession(auth, profiles)

	s.Initialize(context.Background())
	if !s.IsAuthenticated() {
		t.Fatal("expected authenticated after initialize")
	}

	auth.emit(domain.AuthChangeEvent{Event: domain.AuthEventSignedOut, Session: nil})

	if s.IsAuthenticated() {
		t.Error("expected user cleared by sign-out event")
	}
}

func TestAuthStateChange_LoadsProfileOnSignInEvent(t *testing.T) {
	auth := &mockAuth{}
	profiles := &mockProfiles{user: &domain.User{ID: "user-2", Name: "Grace"}}
	s := newSession(auth, profiles)

	s.Initialize(context.Background())

	auth.emit(domain.AuthChangeEvent{
		Event:   domain.AuthEventSignedIn,
		Session: &domain.Session{UserID: "user-2"},
	})

	if u := s.CurrentUser(); u == nil || u.Name != "Grace" {
		t.Errorf("expected profile loaded from event, got %+v", u)
	}
}

func TestUpdateProfile_NoUserIsNoOp(t *testing.T) {
	profiles := &mockProfiles{}
	s := newSession(&mockAuth{}, profiles)

	name := "New Name"
	if err := s.UpdateProfile(context.Background(), domain.ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("expected nil error for anonymous update, got %v", err)
	}
	if profiles.updates != nil {
		t.Error("expected no remote call without a signed-in user")
	}
}

func TestUpdateProfile_MergesAfterConfirmedWrite(t *testing.T) {
	auth := &mockAuth{session: &domain.Session{UserID: "user-1"}}
	profiles := &mockProfiles{user: &domain.User{ID: "user-1", Name: "Ada", Company: "Acme"}}
	s := newSession(auth, profiles)
	if err := s.SignIn(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	company := "Lovelace Ltd"
	if err := s.UpdateProfile(context.Background(), domain.ProfileUpdate{Company: &company}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := profiles.updates["company"]; got != "Lovelace Ltd" {
		t.Errorf("expected company in patch, got %v", profiles.updates)
	}
	u := s.CurrentUser()
	if u.Company != "Lovelace Ltd" {
		t.Errorf("expected merged company, got %q", u.Company)
	}
	if u.Name != "Ada" {
		t.Errorf("expected untouched name, got %q", u.Name)
	}
}

func TestUpdateProfile_RemoteErrorLeavesLocalUntouched(t *testing.T) {
	auth := &mockAuth{session: &domain.Session{UserID: "user-1"}}
	profiles := &mockProfiles{
		user:      &domain.User{ID: "user-1", Name: "Ada"},
		updateErr: errors.New("patch failed"),
	}
	s := newSession(auth, profiles)
	if err := s.SignIn(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("sign-in: %v", err)
	}

	name := "Changed"
	if err := s.UpdateProfile(context.Background(), domain.ProfileUpdate{Name: &name}); err == nil {
		t.Fatal("expected error")
	}
	if u := s.CurrentUser(); u.Name != "Ada" {
		t.Errorf("expected local name untouched after failed write, got %q", u.Name)
	}
}
