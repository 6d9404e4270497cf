package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dhowden/tag"
)

// Tag writes the recognized metadata into the asset's container without
// re-encoding. ffmpeg cannot edit in place, so it writes a sibling file
// which then replaces the original.
func (c *Converter) Tag(ctx context.Context, path, title, artist string, year *int) error {
	tmp := strings.TrimSuffix(path, ".m4a") + ".tagged.m4a"

	args := []string{
		"-i", path,
		"-metadata", "title=" + title,
		"-metadata", "artist=" + artist,
	}
	if year != nil {
		args = append(args, "-metadata", fmt.Sprintf("date=%d", *year))
	}
	args = append(args, "-c", "copy", "-movflags", "faststart", "-y", tmp)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg tag: %v: %s", err, tail(out))
	}
	return os.Rename(tmp, path)
}

// EmbeddedTags reads whatever metadata is embedded in an uploaded file.
// Best effort: uploads may carry no tags at all.
func (c *Converter) EmbeddedTags(path string) (title, artist string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", err
	}
	return m.Title(), m.Artist(), nil
}
