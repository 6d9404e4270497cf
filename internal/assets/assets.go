// Package assets manages the flat on-disk directory holding playable audio,
// cover art and staged uploads, named by each song's external id.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"earworm/internal/songid"
)

// ErrFetch indicates a cover art download failure.
var ErrFetch = errors.New("cover art fetch failed")

const fetchTimeout = 30 * time.Second

type Dir struct {
	root       string
	httpClient *http.Client
}

// New creates the asset directory if needed and returns a handle to it.
func New(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset dir: %w", err)
	}
	return &Dir{
		root:       root,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Audio returns the path of the playable asset for a song.
func (d *Dir) Audio(id uint32) string {
	return filepath.Join(d.root, songid.Format(id)+".m4a")
}

// Cover returns the path of the cover art for a song.
func (d *Dir) Cover(id uint32) string {
	return filepath.Join(d.root, songid.Format(id)+".jpg")
}

// Staging returns the path of the staged upload for a song.
func (d *Dir) Staging(id uint32) string {
	return filepath.Join(d.root, songid.Format(id)+".tmp")
}

// Path resolves a filename stored in a job row against the data dir.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, filepath.Base(name))
}

// SaveUpload stages an uploaded file as <id>.tmp and returns the filename
// recorded on the job row.
func (d *Dir) SaveUpload(id uint32, r io.Reader) (string, error) {
	path := d.Staging(id)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	return filepath.Base(path), nil
}

// FetchCover downloads the cover art image to <id>.jpg. An empty URL is a
// no-op, not a failure.
func (d *Dir) FetchCover(ctx context.Context, url string, id uint32) error {
	if url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d (URL: %s)", ErrFetch, resp.StatusCode, url)
	}

	f, err := os.Create(d.Cover(id))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(d.Cover(id))
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return nil
}

// Remove deletes every asset belonging to a song. Missing files are fine.
func (d *Dir) Remove(id uint32) error {
	var firstErr error
	for _, path := range []string{d.Audio(id), d.Cover(id), d.Staging(id)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
