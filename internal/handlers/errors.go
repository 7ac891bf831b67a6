package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/models"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
)

// writeServiceError maps a service error onto the JSON error envelope with a
// message in the request language. fallback is the message key used when an
// upstream rejection carries no message of its own.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	p := i18n.PrinterFromContext(r.Context())

	var upstream *models.UpstreamError
	upstreamMsg := ""
	if errors.As(err, &upstream) {
		upstreamMsg = upstream.Message
	}
	orFallback := func() string {
		if upstreamMsg != "" {
			return upstreamMsg
		}
		return p.Sprintf(fallback)
	}

	switch {
	case errors.Is(err, models.ErrSubmissionInProgress):
		pkghttp.WriteError(w, http.StatusConflict, pkghttp.CodeSubmissionInProgress, p.Sprintf(i18n.MsgInProgress))
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, p.Sprintf(i18n.MsgInvalidCredential))
	case errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrNoSession),
		errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, p.Sprintf(i18n.MsgNotAuthenticated))
	case errors.Is(err, models.ErrProfileIncomplete), errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, p.Sprintf(i18n.MsgProfileRequired))
	case errors.Is(err, models.ErrInvalidLoginState):
		pkghttp.WriteBadRequest(w, p.Sprintf(i18n.MsgLoginFailed))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, p.Sprintf(i18n.MsgNotFound))
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, orFallback())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, orFallback())
	case errors.Is(err, models.ErrNetwork), errors.Is(err, models.ErrInvalidResponse):
		logger.Warn("upstream call failed", "path", r.URL.Path, "error", err)
		pkghttp.WriteNetworkError(w, p.Sprintf(i18n.MsgNetwork))
	case upstream != nil:
		logger.Warn("upstream rejected request", "path", r.URL.Path, "status", upstream.StatusCode, "error", err)
		pkghttp.WriteNetworkError(w, orFallback())
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		pkghttp.WriteInternalError(w, p.Sprintf(i18n.MsgInternal))
	}
}

func writeFieldErrors(w http.ResponseWriter, r *http.Request, fields forms.FieldErrors) {
	p := i18n.PrinterFromContext(r.Context())
	pkghttp.WriteValidationError(w, p.Sprintf(i18n.MsgValidationFailed), fields)
}

func writeInvalidBody(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteBadRequest(w, i18n.PrinterFromContext(r.Context()).Sprintf(i18n.MsgInvalidRequest))
}
