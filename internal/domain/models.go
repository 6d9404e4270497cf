package domain

import "earworm/internal/songid"

type JobKind string

const (
	JobKindURL  JobKind = "url"
	JobKindFile JobKind = "file"
)

type JobState string

const (
	StateWaiting     JobState = "waiting"
	StateDownloading JobState = "downloading" // URL jobs only
	StateRunning     JobState = "running"
	StateFinished    JobState = "finished"
	StateFailed      JobState = "failed"
)

// Terminal reports whether a job in this state will never transition again.
func (s JobState) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Song is one ingested track. Metadata fields stay nil until a worker
// completes recognition; a song with a nil Title is not yet playable.
type Song struct {
	ID          uint32  `json:"id" db:"id"`
	Title       *string `json:"title,omitempty" db:"title"`
	Artist      *string `json:"artist,omitempty" db:"artist"`
	ReleaseYear *int    `json:"release_year,omitempty" db:"release_year"`
	CoverURL    *string `json:"cover_url,omitempty" db:"cover_url"`
}

// ExternalID returns the hexadecimal id used in URLs and asset filenames.
func (s *Song) ExternalID() string {
	return songid.Format(s.ID)
}

// Identified reports whether recognition has filled the song's metadata.
func (s *Song) Identified() bool {
	return s.Title != nil
}

// URLJob acquires a song from a remote URL.
// Output is overwritten at each state transition with a diagnostic string;
// on failure it holds the captured error text.
type URLJob struct {
	SongID uint32   `json:"song_id" db:"song_id"`
	URL    string   `json:"url" db:"url"`
	Output string   `json:"output" db:"output"`
	State  JobState `json:"state" db:"state"`
}

// FileJob acquires a song from an uploaded file staged in the data dir.
type FileJob struct {
	SongID   uint32   `json:"song_id" db:"song_id"`
	Filename string   `json:"filename" db:"filename"`
	Output   string   `json:"output" db:"output"`
	State    JobState `json:"state" db:"state"`
}

// GamePlay records that a song was served to a game session. The pair is a
// set membership, not a log: at most one row per (game, song).
type GamePlay struct {
	GameID uint32 `json:"game_id" db:"game_id"`
	SongID uint32 `json:"song_id" db:"song_id"`
}

// SongOverview is the read-only operational view joining a song with its job.
type SongOverview struct {
	ID          uint32   `json:"id" db:"id"`
	Title       *string  `json:"title,omitempty" db:"title"`
	Artist      *string  `json:"artist,omitempty" db:"artist"`
	ReleaseYear *int     `json:"release_year,omitempty" db:"release_year"`
	Kind        JobKind  `json:"kind" db:"kind"`
	State       JobState `json:"state" db:"state"`
	Output      string   `json:"output" db:"output"`
}

// ExternalID returns the hexadecimal id used in URLs and asset filenames.
func (o *SongOverview) ExternalID() string {
	return songid.Format(o.ID)
}
