package romfile

import (
	"errors"
	"fmt"

	"github.com/romkeeper/romkeeper/internal/checksum"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
	"github.com/romkeeper/romkeeper/internal/util"
)

// ErrMismatch is returned by Check when contents do not match the
// expected catalog fingerprints.
var ErrMismatch = errors.New("contents do not match expected roms")

func moveFile(src, dst string) error { return util.MoveFile(src, dst) }

// Fingerprint is one (name, size, digest) triple derived from a
// candidate file or archive member.
type Fingerprint struct {
	Name      string
	Size      int64
	Digest    string
	Algorithm checksum.Algorithm
}

// expectedDigest returns the catalog digest of a rom for the given
// algorithm, or empty when the DAT does not carry it.
func expectedDigest(rom *database.Rom, algorithm checksum.Algorithm) string {
	switch algorithm {
	case checksum.Crc:
		if rom.Crc != nil {
			return *rom.Crc
		}
	case checksum.Md5:
		if rom.Md5 != nil {
			return *rom.Md5
		}
	case checksum.Sha1:
		if rom.Sha1 != nil {
			return *rom.Sha1
		}
	}
	return ""
}

// MatchesRom reports whether a fingerprint matches a catalog rom.
func (fp Fingerprint) MatchesRom(rom *database.Rom) bool {
	return fp.Size == rom.Size && fp.Digest == expectedDigest(rom, fp.Algorithm)
}

// Hash computes the (size, digest) fingerprint of a plain file,
// stripping the system header when its rules match.
func (f *File) Hash(algorithm checksum.Algorithm, header *database.Header, sink progress.Sink) (Fingerprint, error) {
	size, digest, err := checksum.SumFile(f.Path, algorithm, header, sink)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Name: f.Name(), Size: size, Digest: digest, Algorithm: algorithm}, nil
}

// Check verifies the file against the single rom it is expected to
// back.
func (f *File) Check(roms []database.Rom, algorithm checksum.Algorithm, header *database.Header, sink progress.Sink) error {
	if len(roms) != 1 {
		return fmt.Errorf("%w: expected exactly one rom, got %d", ErrMismatch, len(roms))
	}
	fp, err := f.Hash(algorithm, header, sink)
	if err != nil {
		return err
	}
	if !fp.MatchesRom(&roms[0]) {
		return fmt.Errorf("%w: %s", ErrMismatch, roms[0].Name)
	}
	return nil
}
