package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/catalog"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/models"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	pkglogger "github.com/Itqan-community/itqan-cms/pkg/logger"
	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
)

// CatalogService answers asset queries.
type CatalogService interface {
	Search(ctx context.Context, state catalog.ViewState, perPage int, tag language.Tag) (*catalog.SearchResult, error)
	Get(ctx context.Context, id string) (*models.Asset, error)
}

// DownloadSigner issues short-lived download URLs.
type DownloadSigner interface {
	DownloadURL(ctx context.Context, key, filename string) (string, time.Time, error)
}

// CatalogHandler serves the dashboard's asset browser.
type CatalogHandler struct {
	catalog  CatalogService
	sessions SessionService
	signer   DownloadSigner
	audit    *pkglogger.AuditLogger
	logger   *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler. signer may be nil, in which
// case downloads report 503.
func NewCatalogHandler(catalog CatalogService, sessions SessionService, signer DownloadSigner, audit *pkglogger.AuditLogger, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, sessions: sessions, signer: signer, audit: audit, logger: logger}
}

type searchResponse struct {
	*catalog.SearchResult
	Seq string `json:"seq,omitempty"`
}

// List handles GET /api/v1/assets. The seq parameter is echoed back so the
// client can discard responses to superseded queries.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := catalog.ParseViewState(q)
	perPage, _ := strconv.Atoi(q.Get(catalog.ParamPerPage))

	result, err := h.catalog.Search(r.Context(), state, perPage, i18n.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgInternal)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, searchResponse{SearchResult: result, Seq: q.Get(catalog.ParamSeq)})
}

// Get handles GET /api/v1/assets/{id}.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgNotFound)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, asset)
}

type downloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Download handles GET /api/v1/assets/{id}/download. Only users with a
// completed profile get a URL.
func (h *CatalogHandler) Download(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), auth.GetSessionID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgInternal)
		return
	}
	if !snap.IsAuthenticated {
		writeServiceError(w, r, h.logger, models.ErrNotAuthenticated, i18n.MsgNotAuthenticated)
		return
	}
	if snap.RequiresProfileCompletion {
		writeServiceError(w, r, h.logger, models.ErrProfileIncomplete, i18n.MsgProfileRequired)
		return
	}

	asset, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgNotFound)
		return
	}
	if h.signer == nil || asset.StorageKey == "" {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, pkghttp.CodeDownloadUnavailable,
			i18n.PrinterFromContext(r.Context()).Sprintf(i18n.MsgDownloadDisabled))
		return
	}

	url, expiresAt, err := h.signer.DownloadURL(r.Context(), asset.StorageKey, path.Base(asset.StorageKey))
	if err != nil {
		writeServiceError(w, r, h.logger, err, i18n.MsgNetwork)
		return
	}

	event := pkglogger.AuditEvent{
		EventType: pkglogger.EventAssetDownload,
		Success:   true,
		Metadata:  map[string]string{"asset_id": asset.ID},
	}
	if snap.User != nil {
		event.UserID = snap.User.Auth0ID
		event.Email = snap.User.Email
	}
	h.audit.Log(r.Context(), event)

	pkghttp.WriteJSON(w, http.StatusOK, downloadResponse{URL: url, ExpiresAt: expiresAt})
}
