package romfile

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ChdType is the disc family stored in a CHD image, derived from its
// metadata tags.
type ChdType int

const (
	ChdTypeCd ChdType = iota
	ChdTypeDvd
	ChdTypeHd
	ChdTypeLd
)

func (t ChdType) String() string {
	switch t {
	case ChdTypeDvd:
		return "dvd"
	case ChdTypeHd:
		return "hd"
	case ChdTypeLd:
		return "ld"
	}
	return "cd"
}

// CHD v5 metadata tags.
const (
	metaTagCdTrack  = 0x43485432 // "CHT2"
	metaTagCdOld    = 0x43485452 // "CHTR"
	metaTagGdTrack  = 0x43484744 // "CHGD"
	metaTagDvd      = 0x44564420 // "DVD "
	metaTagHardDisk = 0x47444444 // "GDDD"
	metaTagLaser    = 0x41564c44 // "AVLD"
	metaTagAv       = 0x41564156 // "AVAV"
)

var chdMagic = [8]byte{'M', 'C', 'o', 'm', 'p', 'r', 'H', 'D'}

// ErrNotChd is returned when the file is not a CHD v5 image.
var ErrNotChd = errors.New("not a CHD v5 image")

// ChdMeta is the metadata probed from a CHD header without
// decompressing any hunk.
type ChdMeta struct {
	Type         ChdType
	TrackCount   int
	LogicalBytes uint64
	UnitBytes    uint32
	Sha1         string
	ParentSha1   string // zero string when the image has no parent
}

// HasParent reports whether the image is a delta against a parent CHD.
func (m *ChdMeta) HasParent() bool {
	for _, c := range m.ParentSha1 {
		if c != '0' {
			return true
		}
	}
	return false
}

// ChdFile is a chdman disc image.
type ChdFile struct {
	File
	Meta ChdMeta
}

// AsChd probes the header and metadata chain of a detected .chd file.
func AsChd(f *File) (*ChdFile, error) {
	meta, err := ProbeChd(f.Path)
	if err != nil {
		return nil, err
	}
	return &ChdFile{File: *f, Meta: *meta}, nil
}

// ProbeChd reads the v5 header and walks the metadata chain to
// classify the image and count its tracks.
func ProbeChd(path string) (*ChdMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CHD: %w", err)
	}
	defer f.Close()

	header := make([]byte, 124)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("failed to read CHD header: %w", err)
	}
	if [8]byte(header[:8]) != chdMagic {
		return nil, ErrNotChd
	}
	if version := binary.BigEndian.Uint32(header[12:16]); version != 5 {
		return nil, fmt.Errorf("%w: version %d", ErrNotChd, version)
	}

	meta := &ChdMeta{
		LogicalBytes: binary.BigEndian.Uint64(header[0x20:0x28]),
		UnitBytes:    binary.BigEndian.Uint32(header[0x3C:0x40]),
		Sha1:         hex.EncodeToString(header[0x54:0x68]),
		ParentSha1:   hex.EncodeToString(header[0x68:0x7C]),
	}

	metaOffset := binary.BigEndian.Uint64(header[0x30:0x38])
	if err := walkChdMetadata(f, metaOffset, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func walkChdMetadata(r io.ReaderAt, offset uint64, meta *ChdMeta) error {
	visited := make(map[uint64]bool)
	for offset != 0 {
		if visited[offset] {
			return errors.New("circular CHD metadata chain")
		}
		visited[offset] = true

		entry := make([]byte, 16)
		if _, err := r.ReadAt(entry, int64(offset)); err != nil {
			return fmt.Errorf("failed to read CHD metadata: %w", err)
		}
		tag := binary.BigEndian.Uint32(entry[0:4])
		switch tag {
		case metaTagCdTrack, metaTagCdOld:
			meta.Type = ChdTypeCd
			meta.TrackCount++
		case metaTagGdTrack:
			// GD-ROM images carry CD-style track metadata
			meta.Type = ChdTypeCd
			meta.TrackCount++
		case metaTagDvd:
			meta.Type = ChdTypeDvd
		case metaTagHardDisk:
			meta.Type = ChdTypeHd
		case metaTagLaser, metaTagAv:
			meta.Type = ChdTypeLd
		}
		offset = binary.BigEndian.Uint64(entry[8:16])
	}
	return nil
}
