// Package web is the HTTP surface: submission forms, the quiz player, asset
// serving and the operational job listing.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"earworm/internal/app"
	"earworm/internal/assets"
	"earworm/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Handler struct {
	ingest    *app.IngestService
	game      *app.GameService
	library   *app.LibraryService
	assets    *assets.Dir
	templates *template.Template
	log       *logger.Logger
}

func NewHandler(ingest *app.IngestService, game *app.GameService, library *app.LibraryService, dir *assets.Dir, log *logger.Logger) *Handler {
	return &Handler{
		ingest:    ingest,
		game:      game,
		library:   library,
		assets:    dir,
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		log:       log.WithComponent("web"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", h.Index)
	r.Post("/upload", h.Upload)
	r.Get("/song/{id}", h.SongAudio)
	r.Get("/cover/{id}", h.SongCover)
	r.Post("/song/{id}/delete", h.DeleteSong)
	r.Get("/game", h.NewGame)
	r.Get("/game/{id}", h.GamePage)
	r.Get("/jobs", h.JobsPage)
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("Failed to render template", "template", name, "error", err)
	}
}
