package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/Itqan-community/itqan-cms/internal/session"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
)

// ProfileHandler accepts the profile-completion form.
type ProfileHandler struct {
	sessions SessionService
	inflight *forms.InFlight
	logger   *slog.Logger
}

func NewProfileHandler(sessions SessionService, inflight *forms.InFlight, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{sessions: sessions, inflight: inflight, logger: logger}
}

// Complete handles POST /api/v1/auth/complete-profile. Invalid forms never
// reach the backend.
func (h *ProfileHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var form forms.ProfileForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeInvalidBody(w, r)
		return
	}
	form.Normalize()
	if fields := forms.Validate(&form, i18n.PrinterFromContext(r.Context())); fields != nil {
		writeFieldErrors(w, r, fields)
		return
	}

	sessionID := auth.GetSessionID(r)
	release, ok := h.inflight.Begin(sessionID, forms.FormProfile)
	if !ok {
		writeServiceError(w, r, h.logger, models.ErrSubmissionInProgress, i18n.MsgProfileFailed)
		return
	}
	defer release()

	lang := i18n.Code(i18n.FromContext(r.Context()))
	snap, err := h.sessions.CompleteProfile(r.Context(), sessionID, form, lang)
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgProfileFailed)
		return
	}

	resp := newSessionResponse(r, snap)
	resp.RedirectTo = session.PathDashboard
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
