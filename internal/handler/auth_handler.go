package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Authentication
// ============================================================

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *domain.User `json:"user"`
}

func authRegisterHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/register")
		defer span.End()

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		if err := session.SignUp(ctx, req.Email, req.Password, req.Name); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, sessionResponse{
			Authenticated: session.IsAuthenticated(),
			Loading:       session.Loading(),
			User:          session.CurrentUser(),
		})
	}
}

func authLoginHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := session.SignIn(ctx, req.Email, req.Password); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{
			Authenticated: true,
			User:          session.CurrentUser(),
		})
	}
}

func authLogoutHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		// Sign-out never fails from the caller's perspective: the local
		// session is cleared even when the remote revocation errors.
		session.SignOut(ctx)
		w.WriteHeader(http.StatusNoContent)
	}
}

func getSessionHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/session")
		defer span.End()

		writeJSON(w, http.StatusOK, sessionResponse{
			Authenticated: session.IsAuthenticated(),
			Loading:       session.Loading(),
			User:          session.CurrentUser(),
		})
	}
}

func updateProfileHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/profile")
		defer span.End()

		var req domain.ProfileUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := session.UpdateProfile(ctx, req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, session.CurrentUser())
	}
}
