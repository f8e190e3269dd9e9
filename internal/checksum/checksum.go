// Package checksum computes streamed content fingerprints, optionally
// skipping a system's dump header first.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
)

// Algorithm selects the hash recorded in the catalog.
type Algorithm string

const (
	Crc  Algorithm = "crc"
	Md5  Algorithm = "md5"
	Sha1 Algorithm = "sha1"
)

// ChunkSize is the read granularity of the hash loop; progress is
// reported once per chunk.
const ChunkSize = 256 * 1024

// ParseAlgorithm validates a HASH_ALGORITHM setting value.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(s)) {
	case Crc:
		return Crc, nil
	case Md5:
		return Md5, nil
	case Sha1:
		return Sha1, nil
	}
	return "", fmt.Errorf("unknown hash algorithm %q", s)
}

func newHash(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case Crc:
		return crc32.NewIEEE(), nil
	case Md5:
		return md5.New(), nil
	case Sha1:
		return sha1.New(), nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
}

// Sum hashes size bytes from r in ChunkSize chunks, advancing sink
// once per chunk. The result is lowercase hex.
func Sum(r io.Reader, size int64, algorithm Algorithm, sink progress.Sink) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}
	buf := make([]byte, ChunkSize)
	remaining := size
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(r, buf[:n])
		if read > 0 {
			h.Write(buf[:read])
			sink.Advance(int64(read))
			remaining -= int64(read)
		}
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read data: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HeaderMatches reports whether the file prefix satisfies every rule
// of the header.
func HeaderMatches(header *database.Header, prefix []byte) bool {
	if header == nil || len(header.Rules) == 0 {
		return false
	}
	for _, rule := range header.Rules {
		pattern, err := hex.DecodeString(rule.HexValue)
		if err != nil {
			return false
		}
		start := rule.StartOffset
		if start+int64(len(pattern)) > int64(len(prefix)) {
			return false
		}
		for i, b := range pattern {
			if prefix[start+int64(i)] != b {
				return false
			}
		}
	}
	return true
}

// SumFile hashes the file at path, skipping header.Size bytes first
// when the header's rules match the file prefix. It returns the hashed
// size (post strip) and the lowercase hex digest.
func SumFile(path string, algorithm Algorithm, header *database.Header, sink progress.Sink) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("failed to stat file: %w", err)
	}
	size := info.Size()

	if header != nil && size > header.Size {
		prefix := make([]byte, header.Size)
		if _, err := io.ReadFull(f, prefix); err != nil {
			return 0, "", fmt.Errorf("failed to read header: %w", err)
		}
		if HeaderMatches(header, prefix) {
			size -= header.Size
		} else {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return 0, "", fmt.Errorf("failed to seek: %w", err)
			}
		}
	}

	sink.Start(info.Name(), size)
	defer sink.Finish()
	digest, err := Sum(f, size, algorithm, sink)
	if err != nil {
		return 0, "", err
	}
	return size, digest, nil
}

// SumReader hashes size bytes from r with progress reporting under the
// given display name.
func SumReader(r io.Reader, size int64, name string, algorithm Algorithm, sink progress.Sink) (string, error) {
	sink.Start(name, size)
	defer sink.Finish()
	return Sum(r, size, algorithm, sink)
}
