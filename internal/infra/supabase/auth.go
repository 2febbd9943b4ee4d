package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// AuthAPI implementation: GoTrue endpoints under /auth/v1
// ============================================================

// gotrueUser is the user object embedded in auth responses.
type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// gotrueSession maps the token grant response.
type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	TokenType    string     `json:"token_type"`
	User         gotrueUser `json:"user"`
}

// gotrueError is the error body shape GoTrue returns on failures.
type gotrueError struct {
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e gotrueError) message() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.ErrorDescription != "":
		return e.ErrorDescription
	default:
		return e.Error
	}
}

// SignUp registers a new user. The display name travels in the metadata the
// backend uses to seed the profiles row. A session is returned only when the
// project has email confirmation disabled; callers must not rely on it.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	body, status, err := c.doAuth(ctx, "signup", map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"name": name},
	}, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusConflict {
		return nil, &domain.ErrConflict{Message: authMessage(body, "user already registered")}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrUnauthorized{Message: authMessage(body, "sign up failed")}
	}

	var sess gotrueSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if sess.AccessToken == "" {
		// Confirmation flow: response carries the bare user, no session.
		var u gotrueUser
		_ = json.Unmarshal(body, &u)
		c.logger.Info("supabase: signup pending confirmation", zap.String("user_id", u.ID))
		return nil, nil
	}

	c.logger.Info("supabase: user signed up", zap.String("user_id", sess.User.ID))
	return c.adoptSession(&sess, domain.AuthEventSignedIn), nil
}

// SignInWithPassword exchanges credentials for a session and notifies
// auth-state subscribers.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInWithPassword")
	defer span.End()

	body, status, err := c.doAuth(ctx, "token?grant_type=password", map[string]any{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrUnauthorized{Message: authMessage(body, "invalid login credentials")}
	}

	var sess gotrueSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	c.logger.Info("supabase: user signed in", zap.String("user_id", sess.User.ID))
	return c.adoptSession(&sess, domain.AuthEventSignedIn), nil
}

// SignOut revokes the current session remotely, then clears the local
// session and notifies subscribers regardless of the remote outcome.
func (c *Client) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	c.mu.Lock()
	token := ""
	if c.session != nil {
		token = c.session.AccessToken
	}
	c.mu.Unlock()

	var remoteErr error
	if token != "" {
		body, status, err := c.doAuth(ctx, "logout", nil, token)
		switch {
		case err != nil:
			remoteErr = err
		case status < 200 || status >= 300:
			remoteErr = fmt.Errorf("supabase logout returned %d: %s", status, string(body))
		}
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.emit(domain.AuthChangeEvent{Event: domain.AuthEventSignedOut})

	if remoteErr != nil {
		c.logger.Warn("supabase: remote sign-out failed, local session cleared anyway", zap.Error(remoteErr))
		return remoteErr
	}
	c.logger.Info("supabase: user signed out")
	return nil
}

// GetSession returns the session held by this client, or nil when signed
// out. A fresh process starts signed out; there is no cross-process session
// persistence.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	sess := *c.session
	return &sess, nil
}

// OnAuthStateChange registers a standing subscription for auth events.
// There is no unsubscribe; registering twice registers two handlers. When a
// session already exists the new handler is invoked immediately with an
// INITIAL_SESSION event.
func (c *Client) OnAuthStateChange(handler func(domain.AuthChangeEvent)) {
	c.mu.Lock()
	c.subscribers = append(c.subscribers, handler)
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		current := *sess
		handler(domain.AuthChangeEvent{Event: domain.AuthEventInitialSession, Session: &current})
	}
}

// adoptSession stores the session and emits event to subscribers.
func (c *Client) adoptSession(gs *gotrueSession, event string) *domain.Session {
	sess := &domain.Session{
		AccessToken:  gs.AccessToken,
		RefreshToken: gs.RefreshToken,
		ExpiresIn:    gs.ExpiresIn,
		TokenType:    gs.TokenType,
		UserID:       gs.User.ID,
		Email:        gs.User.Email,
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.emit(domain.AuthChangeEvent{Event: event, Session: sess})
	return sess
}

func (c *Client) emit(ev domain.AuthChangeEvent) {
	c.mu.Lock()
	handlers := make([]func(domain.AuthChangeEvent), len(c.subscribers))
	copy(handlers, c.subscribers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// doAuth posts to a GoTrue endpoint. The apikey header is always the anon
// key; bearer is the user access token where the endpoint needs one.
func (c *Client) doAuth(ctx context.Context, path string, data map[string]any, bearer string) ([]byte, int, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)

	var reqBody io.Reader
	if data != nil {
		jsonBody, err := json.Marshal(data)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: auth request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, &domain.ErrExternalService{Service: "supabase/auth", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func authMessage(body []byte, fallback string) string {
	var ge gotrueError
	if err := json.Unmarshal(body, &ge); err == nil {
		if msg := ge.message(); msg != "" {
			return msg
		}
	}
	return fallback
}
