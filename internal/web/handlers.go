package web

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/export"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/session"
	"github.com/hpungsan/murmur/internal/store"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *store.Store
	coord    *session.Coordinator
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /notes: list notes, optionally filtered by ?q=.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	notes := h.store.Search(query)

	items := make([]NoteView, 0, len(notes))
	for _, n := range notes {
		items = append(items, viewOf(n))
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Notes",
			Version: h.renderer.version,
			Theme:   h.theme(r),
			Nav:     "notes",
		},
		Items:    items,
		Query:    query,
		HasQuery: strings.TrimSpace(query) != "",
	})
}

// HandleDetail handles GET /notes/{id}: view a single note.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, ok := h.store.Get(id)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}

	body := n.PolishedNote
	if strings.TrimSpace(body) == "" {
		body = n.RawTranscription
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   n.Title,
			Version: h.renderer.version,
			Theme:   h.theme(r),
			Nav:     "notes",
		},
		Item:         viewOf(n),
		RenderedHTML: renderMarkdown(body),
	})
}

// HandleCreate handles POST /notes: start a fresh active note.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	n, err := h.coord.NewNote()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusCreated, map[string]any{"id": n.ID})
		return
	}
	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandleUpload handles POST /notes/upload: transcribe uploaded audio files.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// One extra MB of multipart overhead beyond the per-file cap
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes + 1<<20); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid multipart form"))
		return
	}

	fhs := r.MultipartForm.File["audio"]
	if len(fhs) == 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("no audio files provided"))
		return
	}

	files := make([]pipeline.File, 0, len(fhs))
	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		files = append(files, pipeline.File{
			Name:     fh.Filename,
			Bytes:    data,
			MIMEType: fh.Header.Get("Content-Type"),
		})
	}

	if _, err := h.coord.NewNote(); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := h.coord.Ingest(r.Context(), files, nil)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"id":      h.coord.Active().ID,
			"title":   result.Title,
			"skipped": result.Skipped,
		})
		return
	}
	http.Redirect(w, r, "/notes/"+h.coord.Active().ID, http.StatusFound)
}

// HandleDelete handles DELETE /notes/{id}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.coord.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/notes")
		w.WriteHeader(http.StatusOK)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
		return
	}
	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandlePurge handles POST /notes/purge: delete every note.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	purged := h.store.Len()
	if err := h.store.Clear(r.Context()); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{"purged": purged})
		return
	}
	http.Redirect(w, r, "/notes", http.StatusFound)
}

// HandleExport handles GET /notes/{id}/export?format=: download one note.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, ok := h.store.Get(id)
	if !ok {
		h.renderer.renderError(w, r, errors.NewNotFound(id))
		return
	}

	format, err := export.ParseFormat(formatParam(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data, name, err := export.Render(n, format)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	serveDownload(w, data, name)
}

// HandleExportAll handles GET /notes/export?format=: download all notes.
func (h *Handlers) HandleExportAll(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(formatParam(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data, name, err := export.RenderAll(h.store.All(), format)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	serveDownload(w, data, name)
}

// HandleTheme handles POST /theme: persist the UI theme preference.
func (h *Handlers) HandleTheme(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	theme := r.FormValue("theme")
	if theme != store.ThemeLight && theme != "dark" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("theme must be \"light\" or \"dark\""))
		return
	}
	if err := h.store.SetTheme(r.Context(), theme); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{"theme": theme})
		return
	}
	http.Redirect(w, r, r.Referer(), http.StatusFound)
}

// theme reads the persisted theme; empty means dark.
func (h *Handlers) theme(r *http.Request) string {
	return h.store.Theme(r.Context())
}

// formatParam reads the export format query parameter with a default.
func formatParam(r *http.Request) string {
	f := r.URL.Query().Get("format")
	if f == "" {
		return string(export.FormatMarkdown)
	}
	return f
}

// serveDownload writes bytes as an attachment.
func serveDownload(w http.ResponseWriter, data []byte, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}
