package core

// streaming.go decodes input sources on the fly, without loading the whole
// file:
//
//   - a byte order mark selects UTF-8 or UTF-16 and is dropped
//   - invalid UTF-8 sequences become U+FFFD
//   - text is normalized to NFC so lookups compare equal to stored values
//   - an optional size limit stops oversized sources

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrFileTooLarge is returned once a source exceeds its size limit.
var ErrFileTooLarge = errors.New("file too large")

// NewSourceReader wraps r with BOM handling, UTF-8 sanitizing and NFC
// normalization.
func NewSourceReader(r io.Reader) io.Reader {
	decode := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(r, transform.Chain(decode, norm.NFC))
}

// CountingReader tracks the bytes read from a source and enforces an
// optional limit.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64 // 0 means unlimited
}

// NewCountingReader creates a counting reader. limit <= 0 disables the
// size check.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, r.Limit)
	}
	return n, err
}

// WrapSource applies the size limit to the raw bytes, then decodes them.
func WrapSource(r io.Reader, limit int64) io.Reader {
	return NewSourceReader(NewCountingReader(r, limit))
}
