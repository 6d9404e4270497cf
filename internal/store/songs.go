package store

import (
	"database/sql"
	"errors"

	"earworm/internal/domain"
)

// CreateSong inserts a bare song row. Metadata stays null until a worker
// completes recognition.
func (db *DB) CreateSong(id uint32) error {
	_, err := db.Exec(`INSERT INTO songs (id) VALUES (?)`, id)
	if isConstraint(err) {
		return ErrDuplicateSong
	}
	return err
}

func (db *DB) GetSong(id uint32) (*domain.Song, error) {
	song := &domain.Song{}
	err := db.Get(song, `SELECT id, title, artist, release_year, cover_url FROM songs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}

// SetSongMetadata fills the recognition result onto the song row. Called
// exactly once, by whichever worker completes recognition for the id.
func (db *DB) SetSongMetadata(id uint32, title, artist string, releaseYear *int, coverURL string) error {
	var cover *string
	if coverURL != "" {
		cover = &coverURL
	}
	_, err := db.Exec(`UPDATE songs SET title = ?, artist = ?, release_year = ?, cover_url = ? WHERE id = ?`,
		title, artist, releaseYear, cover, id)
	return err
}

// DeleteSong removes the song row; jobs and game plays cascade.
func (db *DB) DeleteSong(id uint32) error {
	res, err := db.Exec(`DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverview returns the operational view of every song joined with its
// job kind, state and diagnostic output.
func (db *DB) ListOverview() ([]domain.SongOverview, error) {
	query := `
		SELECT s.id, s.title, s.artist, s.release_year,
			CASE WHEN u.song_id IS NOT NULL THEN 'url' ELSE 'file' END AS kind,
			COALESCE(u.state, f.state, '') AS state,
			COALESCE(u.output, f.output, '') AS output
		FROM songs s
		LEFT JOIN url_jobs u ON u.song_id = s.id
		LEFT JOIN file_jobs f ON f.song_id = s.id
		ORDER BY s.id`

	var overview []domain.SongOverview
	err := db.Select(&overview, query)
	return overview, err
}
