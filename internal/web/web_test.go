package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"earworm/internal/app"
	"earworm/internal/assets"
	"earworm/internal/domain"
	"earworm/internal/logger"
	"earworm/internal/songid"
	"earworm/internal/store"
)

type stubPlaylists struct {
	urls []string
}

func (s *stubPlaylists) PlaylistURLs(ctx context.Context, url string) ([]string, error) {
	return s.urls, nil
}

type fixture struct {
	db     *store.DB
	dir    *assets.Dir
	router chi.Router
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir, err := assets.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create asset dir: %v", err)
	}

	log := logger.Default()
	h := NewHandler(
		app.NewIngestService(db, dir, &stubPlaylists{}, log),
		app.NewGameService(db, log),
		app.NewLibraryService(db, dir, log),
		dir,
		log,
	)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &fixture{db: db, dir: dir, router: r}
}

func (f *fixture) addIdentifiedSong(t *testing.T, id uint32, title, artist string) {
	t.Helper()
	if err := f.db.CreateSong(id); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}
	if err := f.db.SetSongMetadata(id, title, artist, nil, ""); err != nil {
		t.Fatalf("SetSongMetadata failed: %v", err)
	}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestIndexRedirect(t *testing.T) {
	f := setup(t)
	rec := f.get(t, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/static/index.html" {
		t.Errorf("unexpected redirect target %q", loc)
	}
}

func TestStaticFiles(t *testing.T) {
	f := setup(t)
	for _, path := range []string{"/static/index.html", "/static/upload.html", "/static/end.html", "/static/style.css"} {
		rec := f.get(t, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, fileContent string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := io.WriteString(fw, fileContent); err != nil {
			t.Fatalf("write file part failed: %v", err)
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload_URL(t *testing.T) {
	f := setup(t)
	body, contentType := multipartBody(t, map[string]string{"url": "https://example.com/v"}, "", "")

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	overview, err := f.db.ListOverview()
	if err != nil {
		t.Fatalf("ListOverview failed: %v", err)
	}
	if len(overview) != 1 {
		t.Fatalf("expected 1 song, got %d", len(overview))
	}
	if overview[0].Kind != domain.JobKindURL || overview[0].State != domain.StateWaiting {
		t.Errorf("unexpected overview row: %+v", overview[0])
	}
}

func TestUpload_File(t *testing.T) {
	f := setup(t)
	body, contentType := multipartBody(t, nil, "song.mp3", "audio bytes")

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	overview, err := f.db.ListOverview()
	if err != nil {
		t.Fatalf("ListOverview failed: %v", err)
	}
	if len(overview) != 1 {
		t.Fatalf("expected 1 song, got %d", len(overview))
	}
	if overview[0].Kind != domain.JobKindFile {
		t.Errorf("expected a file job, got %s", overview[0].Kind)
	}
	if _, err := os.Stat(f.dir.Staging(overview[0].ID)); err != nil {
		t.Errorf("expected staged upload on disk: %v", err)
	}
}

func TestSongAudio(t *testing.T) {
	f := setup(t)
	f.addIdentifiedSong(t, 123456789, "Song X", "Artist Y")
	if err := os.WriteFile(f.dir.Audio(123456789), []byte("mp4 bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rec := f.get(t, "/song/"+songid.Format(123456789))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mp4" {
		t.Errorf("expected audio/mp4, got %q", ct)
	}
	if rec.Body.String() != "mp4 bytes" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestSongAudio_BadID(t *testing.T) {
	f := setup(t)
	rec := f.get(t, "/song/not-hex")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGameFlow(t *testing.T) {
	f := setup(t)
	f.addIdentifiedSong(t, 123456789, "Song X", "Artist Y")

	rec := f.get(t, "/game")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/game/") {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	rec = f.get(t, loc)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "Song X") || !strings.Contains(page, "Artist Y") {
		t.Error("expected the player page to carry the song metadata")
	}
	if !strings.Contains(page, "/song/"+songid.Format(123456789)) {
		t.Error("expected the player page to reference the audio asset")
	}

	// The only song has been served; the same session is now exhausted.
	rec = f.get(t, loc)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302 on exhaustion, got %d", rec.Code)
	}
	if end := rec.Header().Get("Location"); end != "/static/end.html" {
		t.Errorf("unexpected redirect target %q", end)
	}
}

func TestGamePage_BadID(t *testing.T) {
	f := setup(t)
	rec := f.get(t, "/game/not-a-number")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteSong(t *testing.T) {
	f := setup(t)
	f.addIdentifiedSong(t, 123456789, "Song X", "Artist Y")

	req := httptest.NewRequest(http.MethodPost, "/song/"+songid.Format(123456789)+"/delete", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if _, err := f.db.GetSong(123456789); err == nil {
		t.Error("expected song row gone")
	}
}

func TestDeleteSong_NotFound(t *testing.T) {
	f := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/song/abc123/delete", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestJobsPage(t *testing.T) {
	f := setup(t)
	if err := f.db.CreateSong(123456789); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}
	if err := f.db.CreateURLJob(123456789, "https://example.com/v"); err != nil {
		t.Fatalf("CreateURLJob failed: %v", err)
	}

	rec := f.get(t, "/jobs")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, songid.Format(123456789)) {
		t.Error("expected the job listing to show the song id")
	}
	if !strings.Contains(page, "waiting") {
		t.Error("expected the job listing to show the job state")
	}
}
