// Package ytdl wraps the external yt-dlp tool: downloading the best
// available audio stream of a remote video and expanding playlists into
// their entry URLs.
package ytdl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrDownload indicates a failed yt-dlp invocation.
var ErrDownload = errors.New("download failed")

type Client struct {
	bin string
}

func New() *Client {
	return &Client{bin: "yt-dlp"}
}

// Download fetches the best available audio stream into a fresh scratch
// directory under baseDir and returns the downloaded file's path. The caller
// removes the scratch directory when done with the file.
func (c *Client) Download(ctx context.Context, url, baseDir string) (string, error) {
	dir := filepath.Join(baseDir, "dl-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	cmd := exec.CommandContext(ctx, c.bin,
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: yt-dlp: %v: %s", ErrDownload, err, strings.TrimSpace(stderr.String()))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	os.RemoveAll(dir)
	return "", fmt.Errorf("%w: yt-dlp produced no file for %s", ErrDownload, url)
}

// playlistInfo is the part of yt-dlp's -J output we care about.
type playlistInfo struct {
	Entries []struct {
		URL string `json:"url"`
	} `json:"entries"`
}

// PlaylistURLs expands a playlist URL into its entry URLs without
// downloading anything.
func (c *Client) PlaylistURLs(ctx context.Context, url string) ([]string, error) {
	cmd := exec.CommandContext(ctx, c.bin,
		"-J",
		"--flat-playlist",
		"--no-warnings",
		url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: yt-dlp: %v: %s", ErrDownload, err, strings.TrimSpace(stderr.String()))
	}

	return parsePlaylist(stdout.Bytes())
}

func parsePlaylist(data []byte) ([]string, error) {
	var info playlistInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: parse yt-dlp JSON: %v", ErrDownload, err)
	}

	urls := make([]string, 0, len(info.Entries))
	for _, entry := range info.Entries {
		if strings.TrimSpace(entry.URL) != "" {
			urls = append(urls, entry.URL)
		}
	}
	return urls, nil
}
