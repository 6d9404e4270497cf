// Package worker runs the background pipelines that turn waiting jobs into
// playable, identified songs. One worker instance runs per job kind; each
// polls the store for the next waiting job, processes it end to end and
// records the outcome on the job row. A failing job is marked failed with a
// diagnostic and never stops the loop.
package worker

import (
	"context"
	"fmt"
	"time"

	"earworm/internal/assets"
	"earworm/internal/domain"
	"earworm/internal/logger"
	"earworm/internal/recognize"
	"earworm/internal/store"
)

// breather keeps a busy loop from starving the HTTP path between jobs.
const breather = 100 * time.Millisecond

// Downloader fetches the audio of a media URL onto local disk.
type Downloader interface {
	Download(ctx context.Context, url, baseDir string) (string, error)
}

// Converter is the ffmpeg-backed media adapter.
type Converter interface {
	Convert(ctx context.Context, input, output string) error
	Tag(ctx context.Context, path, title, artist string, year *int) error
	EmbeddedTags(path string) (title, artist string, err error)
}

// Recognizer identifies an audio file.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (*recognize.Result, error)
}

// pipeline holds the dependencies both job kinds share and the common tail
// of their processing: keeping it in one place keeps the two workers in
// lockstep on how a song gets identified.
type pipeline struct {
	store      *store.DB
	assets     *assets.Dir
	converter  Converter
	recognizer Recognizer
}

// identify recognizes the converted asset, tags it, fetches cover art,
// persists the song metadata and marks the job finished. setState matches
// the signature of the store's per-kind state setters.
func (p *pipeline) identify(ctx context.Context, songID uint32, audioPath string, log *logger.Logger, setState func(uint32, domain.JobState, string) error) error {
	res, err := p.recognizer.Recognize(ctx, audioPath)
	if err != nil {
		return err
	}

	if err := p.converter.Tag(ctx, audioPath, res.Title, res.Artist, res.ReleaseYear); err != nil {
		return err
	}

	// Cover art is cosmetic; a failed fetch must not fail the job.
	if err := p.assets.FetchCover(ctx, res.CoverArtURL, songID); err != nil {
		log.Warn("Cover art fetch failed", "error", err)
	}

	if err := p.store.SetSongMetadata(songID, res.Title, res.Artist, res.ReleaseYear, res.CoverArtURL); err != nil {
		return err
	}

	summary := fmt.Sprintf("%s - %s", res.Artist, res.Title)
	if err := setState(songID, domain.StateFinished, summary); err != nil {
		return err
	}
	log.Info("Job finished", "title", res.Title, "artist", res.Artist)
	return nil
}

// fail records a job failure with its diagnostic and keeps the loop alive.
func (p *pipeline) fail(songID uint32, log *logger.Logger, cause error, setState func(uint32, domain.JobState, string) error) {
	log.Error("Job failed", "error", cause)
	if err := setState(songID, domain.StateFailed, cause.Error()); err != nil {
		log.Error("Failed to record job failure", "error", err)
	}
}

// loop calls fn until ctx is cancelled. fn reports whether it processed a
// job; when it did, only a short breather separates iterations, otherwise
// the loop idles for pollInterval.
func loop(ctx context.Context, pollInterval time.Duration, fn func() bool) {
	for {
		wait := pollInterval
		if fn() {
			wait = breather
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
