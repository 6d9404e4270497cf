package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"earworm/internal/songid"
	"earworm/internal/store"
)

const maxUploadBytes = 512 << 20

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/static/index.html", http.StatusFound)
}

// Upload accepts one multipart form carrying a media URL, uploaded audio
// files, or both. Every entry becomes its own song plus waiting job.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	if url := r.FormValue("url"); url != "" {
		playlist := r.FormValue("playlist") != ""
		if _, err := h.ingest.SubmitURL(r.Context(), url, playlist); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	for _, header := range r.MultipartForm.File["file"] {
		f, err := header.Open()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, err = h.ingest.SubmitFile(r.Context(), f)
		f.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, "/static/upload.html", http.StatusSeeOther)
}

func (h *Handler) SongAudio(w http.ResponseWriter, r *http.Request) {
	id, err := songid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid song id", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "audio/mp4")
	http.ServeFile(w, r, h.assets.Audio(id))
}

func (h *Handler) SongCover(w http.ResponseWriter, r *http.Request) {
	id, err := songid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid song id", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, h.assets.Cover(id))
}

func (h *Handler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	id, err := songid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid song id", http.StatusBadRequest)
		return
	}
	if err := h.library.DeleteSong(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/jobs", http.StatusSeeOther)
}

func (h *Handler) NewGame(w http.ResponseWriter, r *http.Request) {
	id := h.game.Start()
	http.Redirect(w, r, "/game/"+strconv.FormatUint(uint64(id), 10), http.StatusFound)
}

type playerView struct {
	GameID      string
	SongID      string
	Title       string
	Artist      string
	ReleaseYear *int
	HasCover    bool
}

// GamePage serves the next unplayed identified song for the session. An
// exhausted session lands on the end-of-game page.
func (h *Handler) GamePage(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	song, err := h.game.NextSong(uint32(gameID))
	if err != nil {
		if errors.Is(err, store.ErrNoSongsRemaining) {
			http.Redirect(w, r, "/static/end.html", http.StatusFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	view := playerView{
		GameID:      chi.URLParam(r, "id"),
		SongID:      song.ExternalID(),
		Title:       *song.Title,
		Artist:      *song.Artist,
		ReleaseYear: song.ReleaseYear,
		HasCover:    song.CoverURL != nil && *song.CoverURL != "",
	}
	h.render(w, "player.html", view)
}

type jobView struct {
	SongID string
	Kind   string
	State  string
	Output string
	Title  string
	Artist string
}

func (h *Handler) JobsPage(w http.ResponseWriter, r *http.Request) {
	overview, err := h.library.Overview()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]jobView, 0, len(overview))
	for i := range overview {
		o := &overview[i]
		v := jobView{
			SongID: o.ExternalID(),
			Kind:   string(o.Kind),
			State:  string(o.State),
			Output: o.Output,
		}
		if o.Title != nil {
			v.Title = *o.Title
		}
		if o.Artist != nil {
			v.Artist = *o.Artist
		}
		views = append(views, v)
	}
	h.render(w, "jobs.html", views)
}
