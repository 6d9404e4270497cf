package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"earworm/internal/assets"
	"earworm/internal/logger"
	"earworm/internal/songid"
	"earworm/internal/store"
)

// Song and game ids are drawn from the same nine digit range the external
// ids have always been formatted from.
const (
	idMin = 100_000_000
	idMax = 999_999_999

	maxIDAttempts = 10
)

func newRandomID() uint32 {
	return uint32(idMin + rand.IntN(idMax-idMin+1))
}

// PlaylistResolver expands a playlist URL into its entry URLs.
type PlaylistResolver interface {
	PlaylistURLs(ctx context.Context, url string) ([]string, error)
}

// IngestService turns submissions into song rows plus one waiting job each.
type IngestService struct {
	store     *store.DB
	assets    *assets.Dir
	playlists PlaylistResolver
	log       *logger.Logger
}

func NewIngestService(db *store.DB, dir *assets.Dir, playlists PlaylistResolver, log *logger.Logger) *IngestService {
	return &IngestService{
		store:     db,
		assets:    dir,
		playlists: playlists,
		log:       log.WithComponent("ingest"),
	}
}

// allocateSong creates a song row under a fresh random id, drawing again on
// a primary key collision.
func (s *IngestService) allocateSong() (uint32, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := newRandomID()
		err := s.store.CreateSong(id)
		if errors.Is(err, store.ErrDuplicateSong) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return id, nil
	}
	return 0, fmt.Errorf("failed to allocate a song id after %d attempts", maxIDAttempts)
}

// SubmitURL queues one URL job per submitted URL. A playlist submission is
// expanded into its entries up front so the worker always sees one concrete
// media URL per job.
func (s *IngestService) SubmitURL(ctx context.Context, rawURL string, playlist bool) ([]uint32, error) {
	urls := []string{rawURL}
	if playlist {
		expanded, err := s.playlists.PlaylistURLs(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("failed to expand playlist: %w", err)
		}
		urls = expanded
	}

	var ids []uint32
	for _, u := range urls {
		id, err := s.allocateSong()
		if err != nil {
			return ids, err
		}
		if err := s.store.CreateURLJob(id, u); err != nil {
			return ids, err
		}
		s.log.Info("Queued URL job", "song_id", songid.Format(id), "url", u)
		ids = append(ids, id)
	}
	return ids, nil
}

// SubmitFile stages an uploaded file in the data dir and queues a file job.
func (s *IngestService) SubmitFile(ctx context.Context, upload io.Reader) (uint32, error) {
	id, err := s.allocateSong()
	if err != nil {
		return 0, err
	}

	filename, err := s.assets.SaveUpload(id, upload)
	if err != nil {
		s.store.DeleteSong(id)
		return 0, err
	}
	if err := s.store.CreateFileJob(id, filename); err != nil {
		s.assets.Remove(id)
		s.store.DeleteSong(id)
		return 0, err
	}

	s.log.Info("Queued file job", "song_id", songid.Format(id), "filename", filename)
	return id, nil
}
