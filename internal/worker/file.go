package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"earworm/internal/assets"
	"earworm/internal/domain"
	"earworm/internal/logger"
	"earworm/internal/songid"
	"earworm/internal/store"
)

// FileWorker processes file_jobs: convert the staged upload, recognize, tag,
// fetch cover art, persist the song metadata. The staged file is removed on
// success.
type FileWorker struct {
	pipeline
	pollInterval time.Duration
	log          *logger.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewFileWorker(db *store.DB, dir *assets.Dir, conv Converter, rec Recognizer, pollInterval time.Duration, log *logger.Logger) *FileWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &FileWorker{
		pipeline: pipeline{
			store:      db,
			assets:     dir,
			converter:  conv,
			recognizer: rec,
		},
		pollInterval: pollInterval,
		log:          log.WithComponent("file-worker"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *FileWorker) Start() {
	w.log.Info("Starting file worker", "poll_interval", w.pollInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		loop(w.ctx, w.pollInterval, w.processOne)
	}()
}

func (w *FileWorker) Stop() {
	w.log.Info("Stopping file worker")
	w.cancel()
	w.wg.Wait()
}

func (w *FileWorker) processOne() bool {
	job, err := w.store.ClaimFileJob()
	if err != nil {
		w.log.Error("Failed to claim job", "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.run(job)
	return true
}

func (w *FileWorker) run(job *domain.FileJob) {
	log := w.log.WithSong(songid.Format(job.SongID))
	log.Info("Processing file job", "filename", job.Filename)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing job", "panic", r)
			w.fail(job.SongID, log, fmt.Errorf("panic: %v", r), w.store.SetFileJobState)
		}
	}()

	input := w.assets.Path(job.Filename)

	// Embedded tags are a best-effort diagnostic: the authoritative
	// identification comes from recognition of the converted asset.
	if title, artist, err := w.converter.EmbeddedTags(input); err == nil && (title != "" || artist != "") {
		diag := fmt.Sprintf("embedded tags: %s - %s", artist, title)
		if err := w.store.SetFileJobState(job.SongID, domain.StateRunning, diag); err != nil {
			w.fail(job.SongID, log, err, w.store.SetFileJobState)
			return
		}
	}

	output := w.assets.Audio(job.SongID)
	if err := w.converter.Convert(w.ctx, input, output); err != nil {
		w.fail(job.SongID, log, err, w.store.SetFileJobState)
		return
	}

	if err := w.identify(w.ctx, job.SongID, output, log, w.store.SetFileJobState); err != nil {
		w.fail(job.SongID, log, err, w.store.SetFileJobState)
		return
	}

	if err := os.Remove(input); err != nil {
		log.Warn("Failed to remove staged upload", "error", err)
	}
}
