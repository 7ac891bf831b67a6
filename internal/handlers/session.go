package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/models"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
)

// SessionHandler exposes the reconciled session to the front end.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// Get handles GET /api/v1/session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), auth.GetSessionID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgInternal)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newSessionResponse(r, snap))
}

// SetUser handles PUT /api/v1/session/user.
func (h *SessionHandler) SetUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decodeJSON(w, r, &user); err != nil {
		writeInvalidBody(w, r)
		return
	}

	snap, err := h.sessions.SetUser(r.Context(), auth.GetSessionID(r), &user)
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgInternal)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newSessionResponse(r, snap))
}
