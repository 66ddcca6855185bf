// Package hasher computes SHA-256 content digests of tracked files.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read buffer size used when streaming a file.
const ChunkSize = 8 * 1024

// ReadError wraps any I/O failure while hashing a file: not found,
// permission denied, or an error partway through the read.
type ReadError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// Hasher streams files through SHA-256 with a bounded buffer.
type Hasher struct {
	bufSize int
}

// New creates a Hasher reading in chunks of bufSize bytes.
// A non-positive bufSize uses ChunkSize.
func New(bufSize int) *Hasher {
	if bufSize <= 0 {
		bufSize = ChunkSize
	}
	return &Hasher{bufSize: bufSize}
}

// Hash returns the hex-encoded SHA-256 digest of the file at path.
// Every failure is returned as a *ReadError.
func (h *Hasher) Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	digest, err := h.Sum(f)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	return digest, nil
}

// Sum returns the hex-encoded SHA-256 digest of everything read from r.
func (h *Hasher) Sum(r io.Reader) (string, error) {
	sum := sha256.New()
	buf := make([]byte, h.bufSize)
	if _, err := io.CopyBuffer(sum, onlyReader{r}, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// onlyReader hides WriterTo on the source so io.CopyBuffer reads through
// the bounded buffer.
type onlyReader struct {
	io.Reader
}
