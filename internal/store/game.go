package store

import (
	"math/rand/v2"

	"earworm/internal/domain"
)

// NextSong picks one identified song not yet served to the game, records the
// play, and returns it. Selection and the play insert share one transaction
// so repeated calls never repeat a song for that game. Returns
// ErrNoSongsRemaining when every identified song has been served.
func (db *DB) NextSong(gameID uint32) (*domain.Song, error) {
	tx, err := db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ids []uint32
	err = tx.Select(&ids, `
		SELECT id FROM songs s
		WHERE s.title IS NOT NULL
		AND NOT EXISTS (
			SELECT 1 FROM game_plays g
			WHERE g.game_id = ? AND g.song_id = s.id
		)
		ORDER BY id`, gameID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoSongsRemaining
	}

	pick := ids[rand.IntN(len(ids))]

	song := &domain.Song{}
	if err := tx.Get(song, `SELECT id, title, artist, release_year, cover_url FROM songs WHERE id = ?`, pick); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`INSERT INTO game_plays (game_id, song_id) VALUES (?, ?)`, gameID, pick); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return song, nil
}

// ListPlays returns the songs already served to a game, in id order.
func (db *DB) ListPlays(gameID uint32) ([]domain.GamePlay, error) {
	var plays []domain.GamePlay
	err := db.Select(&plays, `SELECT game_id, song_id FROM game_plays WHERE game_id = ? ORDER BY song_id`, gameID)
	return plays, err
}
