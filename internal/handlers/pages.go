package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/session"
)

// PageHandler serves the front-end bundle. Page routes pass through the
// session guard before the shell is returned.
type PageHandler struct {
	sessions SessionService
	dir      string
	logger   *slog.Logger
}

func NewPageHandler(sessions SessionService, frontendDir string, logger *slog.Logger) *PageHandler {
	return &PageHandler{sessions: sessions, dir: frontendDir, logger: logger}
}

// Page guards a front-end route and serves index.html when allowed.
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), auth.GetSessionID(r))
	if err != nil {
		h.logger.Error("failed to load session for page", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if decision := session.Guard(snap.State, r.URL.RequestURI()); !decision.Allowed() {
		http.Redirect(w, r, decision.Redirect, http.StatusFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.serveFile(w, r, "index.html")
}

// Static serves files from the bundle directory. Directories and missing
// files are 404s.
func (h *PageHandler) Static(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	h.serveFile(w, r, name)
}

func (h *PageHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	full := filepath.Join(h.dir, filepath.FromSlash(name))
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.IsDir():
		http.NotFound(w, r)
		return
	case err != nil:
		h.logger.Error("failed to stat front-end file", "file", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		h.logger.Error("failed to open front-end file", "file", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
