// Package ird parses PlayStation 3 IRD disc descriptors. Only format
// version 9 is supported.
package ird

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

var magic = []byte("3IRD")

// ErrUnsupportedVersion is returned for IRD files other than version 9.
var ErrUnsupportedVersion = errors.New("unsupported IRD version")

// FileHash is the MD5 of the file starting at the given disc sector.
type FileHash struct {
	Sector uint64
	MD5    [16]byte
}

// IRD is a parsed disc descriptor.
type IRD struct {
	Version       int
	GameID        string
	GameName      string
	UpdateVersion string
	GameVersion   string
	AppVersion    string
	RegionHashes  [][16]byte
	FileHashes    []FileHash

	header []byte // decompressed ISO9660 header sectors
	footer []byte
}

// Parse reads a gzip-wrapped IRD file.
func Parse(path string) (*IRD, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open IRD file: %w", err)
	}
	defer f.Close()

	return ParseReader(f)
}

// ParseReader parses an IRD document from a reader.
func ParseReader(r io.Reader) (*IRD, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip envelope: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to read IRD data: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*IRD, error) {
	b := &buffer{data: data}

	if !bytes.Equal(b.take(4), magic) {
		return nil, errors.New("not an IRD file")
	}
	ird := &IRD{Version: int(b.u8())}
	if ird.Version != 9 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ird.Version)
	}

	ird.GameID = string(b.take(9))
	ird.GameName = string(b.take(int(b.u8())))
	ird.UpdateVersion = trimVersion(b.take(4))
	ird.GameVersion = trimVersion(b.take(5))
	ird.AppVersion = trimVersion(b.take(5))

	header, err := b.gzipBlob()
	if err != nil {
		return nil, fmt.Errorf("failed to read ISO header blob: %w", err)
	}
	ird.header = header
	footer, err := b.gzipBlob()
	if err != nil {
		return nil, fmt.Errorf("failed to read footer blob: %w", err)
	}
	ird.footer = footer

	regions := int(b.u8())
	for i := 0; i < regions; i++ {
		var md5 [16]byte
		copy(md5[:], b.take(16))
		ird.RegionHashes = append(ird.RegionHashes, md5)
	}

	files := int(b.u32le())
	for i := 0; i < files; i++ {
		var fh FileHash
		fh.Sector = b.u64le()
		copy(fh.MD5[:], b.take(16))
		ird.FileHashes = append(ird.FileHashes, fh)
	}

	if b.err != nil {
		return nil, fmt.Errorf("truncated IRD file: %w", b.err)
	}
	return ird, nil
}

func trimVersion(raw []byte) string {
	return string(bytes.TrimRight(raw, "\x00 "))
}

type buffer struct {
	data []byte
	pos  int
	err  error
}

func (b *buffer) take(n int) []byte {
	if b.err != nil || b.pos+n > len(b.data) {
		if b.err == nil {
			b.err = io.ErrUnexpectedEOF
		}
		return make([]byte, n)
	}
	out := b.data[b.pos : b.pos+n]
	b.pos += n
	return out
}

func (b *buffer) u8() uint8      { return b.take(1)[0] }
func (b *buffer) u32le() uint32  { return binary.LittleEndian.Uint32(b.take(4)) }
func (b *buffer) u64le() uint64  { return binary.LittleEndian.Uint64(b.take(8)) }

func (b *buffer) gzipBlob() ([]byte, error) {
	length := int(b.u32le())
	raw := b.take(length)
	if b.err != nil {
		return nil, b.err
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
