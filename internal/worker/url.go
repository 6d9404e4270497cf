package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"earworm/internal/assets"
	"earworm/internal/domain"
	"earworm/internal/logger"
	"earworm/internal/songid"
	"earworm/internal/store"
)

// URLWorker processes url_jobs: download, convert, recognize, tag, fetch
// cover art, persist the song metadata.
type URLWorker struct {
	pipeline
	downloader   Downloader
	pollInterval time.Duration
	log          *logger.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewURLWorker(db *store.DB, dir *assets.Dir, dl Downloader, conv Converter, rec Recognizer, pollInterval time.Duration, log *logger.Logger) *URLWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &URLWorker{
		pipeline: pipeline{
			store:      db,
			assets:     dir,
			converter:  conv,
			recognizer: rec,
		},
		downloader:   dl,
		pollInterval: pollInterval,
		log:          log.WithComponent("url-worker"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *URLWorker) Start() {
	w.log.Info("Starting URL worker", "poll_interval", w.pollInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		loop(w.ctx, w.pollInterval, w.processOne)
	}()
}

func (w *URLWorker) Stop() {
	w.log.Info("Stopping URL worker")
	w.cancel()
	w.wg.Wait()
}

// processOne claims and runs the next waiting url_job. Returns false when
// there was nothing to claim.
func (w *URLWorker) processOne() bool {
	job, err := w.store.ClaimURLJob()
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

func (w *URLWorker) run(job *domain.URLJob) {
	log := w.log.WithSong(songid.Format(job.SongID))
	log.Info("Processing URL job", "url", job.URL)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing job", "panic", r)
			w.fail(job.SongID, log, fmt.Errorf("panic: %v", r), w.store.SetURLJobState)
		}
	}()

	downloaded, err := w.downloader.Download(w.ctx, job.URL, w.assets.Root())
	if err != nil {
		w.fail(job.SongID, log, err, w.store.SetURLJobState)
		return
	}
	// The download lands in a scratch dir next to the assets; drop the
	// whole dir once the converted asset exists.
	defer os.RemoveAll(filepath.Dir(downloaded))

	output := w.assets.Audio(job.SongID)
	if err := w.converter.Convert(w.ctx, downloaded, output); err != nil {
		w.fail(job.SongID, log, err, w.store.SetURLJobState)
		return
	}

	diag := "downloaded " + filepath.Base(downloaded)
	if err := w.store.SetURLJobState(job.SongID, domain.StateRunning, diag); err != nil {
		w.fail(job.SongID, log, err, w.store.SetURLJobState)
		return
	}

	if err := w.identify(w.ctx, job.SongID, output, log, w.store.SetURLJobState); err != nil {
		w.fail(job.SongID, log, err, w.store.SetURLJobState)
	}
}
