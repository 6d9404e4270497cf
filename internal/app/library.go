package app

import (
	"earworm/internal/assets"
	"earworm/internal/domain"
	"earworm/internal/logger"
	"earworm/internal/songid"
	"earworm/internal/store"
)

// LibraryService is the operational view over songs and their jobs.
type LibraryService struct {
	store  *store.DB
	assets *assets.Dir
	log    *logger.Logger
}

func NewLibraryService(db *store.DB, dir *assets.Dir, log *logger.Logger) *LibraryService {
	return &LibraryService{store: db, assets: dir, log: log.WithComponent("library")}
}

func (l *LibraryService) Overview() ([]domain.SongOverview, error) {
	return l.store.ListOverview()
}

// DeleteSong removes a song's asset files and its row; jobs and game plays
// cascade with the row.
func (l *LibraryService) DeleteSong(id uint32) error {
	if err := l.assets.Remove(id); err != nil {
		// Still delete the row: a leftover file is recoverable, a dangling
		// playable row pointing at nothing is not.
		l.log.Warn("Failed to remove assets", "song_id", songid.Format(id), "error", err)
	}
	if err := l.store.DeleteSong(id); err != nil {
		return err
	}
	l.log.Info("Song deleted", "song_id", songid.Format(id))
	return nil
}
