package app

import (
	"earworm/internal/domain"
	"earworm/internal/logger"
	"earworm/internal/store"
)

// GameService runs quiz sessions: each game id accumulates the set of songs
// already served to that player.
type GameService struct {
	store *store.DB
	log   *logger.Logger
}

func NewGameService(db *store.DB, log *logger.Logger) *GameService {
	return &GameService{store: db, log: log.WithComponent("game")}
}

// Start allocates a fresh game id.
func (g *GameService) Start() uint32 {
	id := newRandomID()
	g.log.Info("Game started", "game_id", id)
	return id
}

// NextSong serves one identified, not yet played song for the game and
// records it as played. Returns store.ErrNoSongsRemaining when the game has
// heard everything.
func (g *GameService) NextSong(gameID uint32) (*domain.Song, error) {
	song, err := g.store.NextSong(gameID)
	if err != nil {
		return nil, err
	}
	g.log.Info("Serving song", "game_id", gameID, "song_id", song.ExternalID())
	return song, nil
}
