// Package recognize calls the external audio recognition service to map an
// audio sample to track metadata.
package recognize

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultUserAgent   = "earworm/1.0"
	requestTimeout     = 30 * time.Second
	minRequestInterval = 1 * time.Second

	// The detect endpoint samples the beginning of the track; sending the
	// whole asset wastes quota and upload time.
	maxSampleBytes = 500 * 1024
)

// ErrNoMatch indicates the service could not identify the track or returned
// a track missing a required field.
var ErrNoMatch = errors.New("recognition failed")

// Result is the identification of one audio sample.
type Result struct {
	Title       string
	Artist      string
	ReleaseYear *int
	CoverArtURL string
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	userAgent   string
	lastRequest time.Time
	mu          sync.Mutex
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// trackResponse is the part of the detect response we care about.
type trackResponse struct {
	Track *trackDocument `json:"track"`
}

type trackDocument struct {
	Title       string `json:"title"`
	ReleaseDate string `json:"releasedate"`
	Images      struct {
		CoverArt string `json:"coverart"`
	} `json:"images"`
	Artists []struct {
		AdamID json.Number `json:"adamid"`
	} `json:"artists"`
	Sections []trackSection `json:"sections"`
}

type trackSection struct {
	Metadata []sectionEntry `json:"metadata"`
}

type sectionEntry struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type artistResponse struct {
	Data []struct {
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

// Recognize identifies the audio file at audioPath. The artist name needs a
// second lookup keyed by the primary artist's numeric id from the first
// response.
func (c *Client) Recognize(ctx context.Context, audioPath string) (*Result, error) {
	sample, err := readSample(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}

	var detected trackResponse
	if err := c.detect(ctx, sample, &detected); err != nil {
		return nil, err
	}
	track := detected.Track
	if track == nil || track.Title == "" {
		return nil, fmt.Errorf("%w: no track in response", ErrNoMatch)
	}

	result := &Result{
		Title:       track.Title,
		CoverArtURL: track.Images.CoverArt,
		ReleaseYear: releaseYear(track.ReleaseDate, track.Sections),
	}

	if len(track.Artists) == 0 {
		return nil, fmt.Errorf("%w: track %q has no artists", ErrNoMatch, track.Title)
	}
	artist, err := c.artistName(ctx, track.Artists[0].AdamID.String())
	if err != nil {
		return nil, err
	}
	result.Artist = artist

	return result, nil
}

// releaseYear applies the extraction policy: prefer the release date field,
// taking its last four characters; otherwise scan the metadata sections for
// an entry labelled "Released".
func releaseYear(releaseDate string, sections []trackSection) *int {
	if len(releaseDate) >= 4 {
		if year, err := strconv.Atoi(releaseDate[len(releaseDate)-4:]); err == nil {
			return &year
		}
	}
	for _, section := range sections {
		for _, entry := range section.Metadata {
			if entry.Title == "Released" {
				if year, err := strconv.Atoi(strings.TrimSpace(entry.Text)); err == nil {
					return &year
				}
			}
		}
	}
	return nil
}

func (c *Client) detect(ctx context.Context, sample []byte, out *trackResponse) error {
	body := base64.StdEncoding.EncodeToString(sample)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/songs/v2/detect", bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	return c.do(ctx, req, out)
}

func (c *Client) artistName(ctx context.Context, adamID string) (string, error) {
	u := fmt.Sprintf("%s/artists/details?id=%s", c.baseURL, url.QueryEscape(adamID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	var about artistResponse
	if err := c.do(ctx, req, &about); err != nil {
		return "", err
	}
	if len(about.Data) == 0 || about.Data[0].Attributes.Name == "" {
		return "", fmt.Errorf("%w: artist %s not resolvable", ErrNoMatch, adamID)
	}
	return about.Data[0].Attributes.Name, nil
}

// do executes a request against the recognition service, spacing requests
// out to stay under its rate limit.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	c.mu.Lock()
	now := time.Now()
	next := c.lastRequest.Add(minRequestInterval)
	var wait time.Duration
	if now.Before(next) {
		wait = next.Sub(now)
		c.lastRequest = next
	} else {
		c.lastRequest = now
	}
	c.mu.Unlock()
	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: recognizer returned status %d", ErrNoMatch, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readSample(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > maxSampleBytes {
		data = data[:maxSampleBytes]
	}
	return data, nil
}
