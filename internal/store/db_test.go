package store

import (
	"errors"
	"path/filepath"
	"testing"

	"earworm/internal/domain"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strval(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migrate.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	want := migrations[len(migrations)-1].version
	if version != want {
		t.Errorf("expected schema version %d, got %d", want, version)
	}
	db.Close()

	// Reopening must be a no-op, not a re-application.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	version, err = db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion after reopen failed: %v", err)
	}
	if version != want {
		t.Errorf("expected schema version %d after reopen, got %d", want, version)
	}
}

func TestCreateSong_Duplicate(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSong(42); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}
	err := db.CreateSong(42)
	if !errors.Is(err, ErrDuplicateSong) {
		t.Errorf("expected ErrDuplicateSong, got %v", err)
	}
}

func TestGetSong_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetSong(7)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetSongMetadata(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSong(1); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}

	song, err := db.GetSong(1)
	if err != nil {
		t.Fatalf("GetSong failed: %v", err)
	}
	if song.Identified() {
		t.Error("expected fresh song to be unidentified")
	}

	year := 2020
	if err := db.SetSongMetadata(1, "Title X", "Artist Y", &year, "http://img/cover.jpg"); err != nil {
		t.Fatalf("SetSongMetadata failed: %v", err)
	}

	song, err = db.GetSong(1)
	if err != nil {
		t.Fatalf("GetSong failed: %v", err)
	}
	if strval(song.Title) != "Title X" || strval(song.Artist) != "Artist Y" {
		t.Errorf("unexpected metadata: %+v", song)
	}
	if song.ReleaseYear == nil || *song.ReleaseYear != 2020 {
		t.Errorf("expected release year 2020, got %v", song.ReleaseYear)
	}
}

func TestClaimURLJob(t *testing.T) {
	db := setupTestDB(t)

	// No waiting job yet.
	job, err := db.ClaimURLJob()
	if err != nil {
		t.Fatalf("ClaimURLJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no job, got %+v", job)
	}

	for _, id := range []uint32{30, 10, 20} {
		if err := db.CreateSong(id); err != nil {
			t.Fatalf("CreateSong failed: %v", err)
		}
		if err := db.CreateURLJob(id, "https://example.com/v"); err != nil {
			t.Fatalf("CreateURLJob failed: %v", err)
		}
	}

	// Lowest song id wins the tie-break.
	job, err = db.ClaimURLJob()
	if err != nil {
		t.Fatalf("ClaimURLJob failed: %v", err)
	}
	if job == nil || job.SongID != 10 {
		t.Fatalf("expected job for song 10, got %+v", job)
	}
	if job.State != domain.StateDownloading {
		t.Errorf("expected claimed state downloading, got %s", job.State)
	}

	// The claim is durable: the same row is not offered again.
	stored, err := db.GetURLJob(10)
	if err != nil {
		t.Fatalf("GetURLJob failed: %v", err)
	}
	if stored.State != domain.StateDownloading {
		t.Errorf("expected persisted state downloading, got %s", stored.State)
	}

	job, err = db.ClaimURLJob()
	if err != nil {
		t.Fatalf("ClaimURLJob failed: %v", err)
	}
	if job == nil || job.SongID != 20 {
		t.Errorf("expected job for song 20, got %+v", job)
	}
}

func TestClaimFileJob(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSong(5); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}
	if err := db.CreateFileJob(5, "5.tmp"); err != nil {
		t.Fatalf("CreateFileJob failed: %v", err)
	}

	job, err := db.ClaimFileJob()
	if err != nil {
		t.Fatalf("ClaimFileJob failed: %v", err)
	}
	if job == nil || job.SongID != 5 || job.Filename != "5.tmp" {
		t.Fatalf("unexpected job: %+v", job)
	}
	// File jobs skip the downloading phase.
	if job.State != domain.StateRunning {
		t.Errorf("expected claimed state running, got %s", job.State)
	}

	job, err = db.ClaimFileJob()
	if err != nil {
		t.Fatalf("ClaimFileJob failed: %v", err)
	}
	if job != nil {
		t.Errorf("expected no second claim, got %+v", job)
	}
}

func TestSetJobState(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSong(9); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}
	if err := db.CreateURLJob(9, "https://example.com/v"); err != nil {
		t.Fatalf("CreateURLJob failed: %v", err)
	}

	if err := db.SetURLJobState(9, domain.StateFailed, "boom"); err != nil {
		t.Fatalf("SetURLJobState failed: %v", err)
	}
	job, err := db.GetURLJob(9)
	if err != nil {
		t.Fatalf("GetURLJob failed: %v", err)
	}
	if job.State != domain.StateFailed || job.Output != "boom" {
		t.Errorf("unexpected job after failure: %+v", job)
	}
}

func TestDeleteSong_Cascades(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSong(100); err != nil {
		t.Fatalf("CreateSong failed: %v", err)
	}
	if err := db.CreateURLJob(100, "https://example.com/v"); err != nil {
		t.Fatalf("CreateURLJob failed: %v", err)
	}
	year := 1999
	if err := db.SetSongMetadata(100, "T", "A", &year, ""); err != nil {
		t.Fatalf("SetSongMetadata failed: %v", err)
	}
	if _, err := db.NextSong(1); err != nil {
		t.Fatalf("NextSong failed: %v", err)
	}

	if err := db.DeleteSong(100); err != nil {
		t.Fatalf("DeleteSong failed: %v", err)
	}

	if _, err := db.GetURLJob(100); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected job row to cascade, got %v", err)
	}
	plays, err := db.ListPlays(1)
	if err != nil {
		t.Fatalf("ListPlays failed: %v", err)
	}
	if len(plays) != 0 {
		t.Errorf("expected plays to cascade, got %+v", plays)
	}
	if _, err := db.NextSong(1); !errors.Is(err, ErrNoSongsRemaining) {
		t.Errorf("expected deleted song to never be selected again, got %v", err)
	}

	if err := db.DeleteSong(100); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestListOverview(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateSong(1); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateURLJob(1, "https://example.com/a"); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateSong(2); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateFileJob(2, "2.tmp"); err != nil {
		t.Fatal(err)
	}

	overview, err := db.ListOverview()
	if err != nil {
		t.Fatalf("ListOverview failed: %v", err)
	}
	if len(overview) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(overview))
	}
	if overview[0].Kind != domain.JobKindURL || overview[0].State != domain.StateWaiting {
		t.Errorf("unexpected first row: %+v", overview[0])
	}
	if overview[1].Kind != domain.JobKindFile {
		t.Errorf("unexpected second row: %+v", overview[1])
	}
}

func TestNextSong(t *testing.T) {
	db := setupTestDB(t)

	year := 2001
	identified := []uint32{1, 2, 3}
	for _, id := range identified {
		if err := db.CreateSong(id); err != nil {
			t.Fatal(err)
		}
		if err := db.SetSongMetadata(id, "T", "A", &year, ""); err != nil {
			t.Fatal(err)
		}
	}
	// An unidentified song must never be selected.
	if err := db.CreateSong(99); err != nil {
		t.Fatal(err)
	}

	const gameID = 42
	seen := map[uint32]bool{}
	for range identified {
		song, err := db.NextSong(gameID)
		if err != nil {
			t.Fatalf("NextSong failed: %v", err)
		}
		if song.ID == 99 {
			t.Fatal("selector returned an unidentified song")
		}
		if seen[song.ID] {
			t.Fatalf("song %d served twice to the same game", song.ID)
		}
		seen[song.ID] = true
	}

	_, err := db.NextSong(gameID)
	if !errors.Is(err, ErrNoSongsRemaining) {
		t.Errorf("expected ErrNoSongsRemaining after exhaustion, got %v", err)
	}

	// A different game starts fresh.
	if _, err := db.NextSong(gameID + 1); err != nil {
		t.Errorf("expected a fresh game to get a song, got %v", err)
	}
}
