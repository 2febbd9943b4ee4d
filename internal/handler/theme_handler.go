package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Theme
// ============================================================

type themeResponse struct {
	Dark bool `json:"dark"`
}

func getThemeHandler(theme *service.Theme, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, themeResponse{Dark: theme.IsDark()})
	}
}

func toggleThemeHandler(theme *service.Theme, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		theme.Toggle()
		writeJSON(w, http.StatusOK, themeResponse{Dark: theme.IsDark()})
	}
}

func setThemeHandler(theme *service.Theme, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req themeResponse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		theme.SetDark(req.Dark)
		writeJSON(w, http.StatusOK, themeResponse{Dark: theme.IsDark()})
	}
}
