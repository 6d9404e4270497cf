// Package media wraps the external ffmpeg/ffprobe tools behind narrow
// function contracts: loudness-normalized transcoding to AAC/MP4 and
// metadata tagging of the produced asset.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"earworm/internal/logger"
)

// ErrTranscode indicates a failed transcode or loudness measurement.
var ErrTranscode = errors.New("transcode failed")

// loudness holds the first-pass measurements. ffmpeg prints them as quoted
// decimal strings and accepts them back verbatim in the second pass.
type loudness struct {
	InputI      string `json:"input_i"`
	InputTP     string `json:"input_tp"`
	InputLRA    string `json:"input_lra"`
	InputThresh string `json:"input_thresh"`
}

type Converter struct {
	log *logger.Logger
}

func NewConverter(log *logger.Logger) *Converter {
	return &Converter{log: log.WithComponent("media")}
}

// Convert transcodes input to a loudness-normalized AAC-in-MP4 asset at
// output. Two passes: measure integrated loudness, true peak, loudness range
// and threshold, then re-encode against a -16 LUFS / 2 LU / -1 dBTP target
// with fast-start metadata placement for progressive playback.
func (c *Converter) Convert(ctx context.Context, input, output string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: input: %v", ErrTranscode, err)
	}

	m, err := c.measure(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: first pass: %v", ErrTranscode, err)
	}
	c.log.Debug("measured loudness",
		"input", input, "i", m.InputI, "tp", m.InputTP, "lra", m.InputLRA, "thresh", m.InputThresh)

	filter := fmt.Sprintf(
		"loudnorm=I=-16:LRA=2:tp=-1:measured_i=%s:measured_tp=%s:measured_lra=%s:measured_thresh=%s",
		m.InputI, m.InputTP, m.InputLRA, m.InputThresh)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", input,
		"-filter:a", filter,
		"-c:a", "aac",
		"-vn",
		"-movflags", "faststart",
		"-y",
		output)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: second pass: %v: %s", ErrTranscode, err, tail(out))
	}
	return nil
}

// measure runs the first loudnorm pass. ffprobe prints the measurement JSON
// to stderr among its log output.
func (c *Converter) measure(ctx context.Context, input string) (*loudness, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-f", "lavfi",
		"-hide_banner",
		"-i", fmt.Sprintf("amovie=%s,loudnorm=print_format=json[out]", input),
		"-loglevel", "info")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %v: %s", err, tail(stderr.Bytes()))
	}
	return parseLoudness(stderr.String())
}

// parseLoudness extracts the loudnorm JSON block from ffprobe's stderr.
func parseLoudness(output string) (*loudness, error) {
	lines := strings.Split(output, "\n")
	start, end := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case "{":
			start = i
		case "}":
			if start != -1 && end == -1 {
				end = i
			}
		}
	}
	if start == -1 || end == -1 {
		return nil, errors.New("no loudness JSON in ffprobe output")
	}

	m := &loudness{}
	if err := json.Unmarshal([]byte(strings.Join(lines[start:end+1], "\n")), m); err != nil {
		return nil, fmt.Errorf("parse loudness JSON: %w", err)
	}
	if m.InputI == "" || m.InputTP == "" || m.InputLRA == "" || m.InputThresh == "" {
		return nil, errors.New("incomplete loudness measurement")
	}
	return m, nil
}

// tail keeps the last part of tool output for error diagnostics.
func tail(out []byte) string {
	const max = 512
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		s = "..." + s[len(s)-max:]
	}
	return s
}
