// Package songid converts between internal numeric song ids and the
// hexadecimal form used in URLs and asset filenames.
package songid

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed indicates an external id that is not valid hexadecimal.
var ErrMalformed = errors.New("malformed song id")

// Format renders an internal id as lowercase hex without padding.
func Format(id uint32) string {
	return strconv.FormatUint(uint64(id), 16)
}

// Parse is the exact inverse of Format.
func Parse(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty id", ErrMalformed)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return uint32(n), nil
}
