package ird

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	sectorSize      = 2048
	pvdSector       = 16
	rootRecordStart = 156
	flagDirectory   = 0x02
)

// Entry is one file enumerated from the disc's ISO9660 header.
type Entry struct {
	Path   string // slash-separated path relative to the disc root
	Size   int64
	Extent int64 // starting sector, matches FileHash.Sector
}

// Files walks the directory records of the embedded ISO9660 header and
// returns every regular file, in depth-first order. JB-folder child
// roms are materialized from this listing.
func (i *IRD) Files() ([]Entry, error) {
	pvd := int64(pvdSector) * sectorSize
	if pvd+sectorSize > int64(len(i.header)) {
		return nil, errors.New("ISO header blob too small")
	}
	if string(i.header[pvd+1:pvd+6]) != "CD001" {
		return nil, errors.New("missing ISO9660 volume descriptor")
	}

	root := i.header[pvd+rootRecordStart : pvd+rootRecordStart+34]
	extent := binary.LittleEndian.Uint32(root[2:6])
	size := binary.LittleEndian.Uint32(root[10:14])

	var entries []Entry
	if err := i.walkDirectory("", int64(extent), int64(size), &entries, 0); err != nil {
		return nil, err
	}
	return entries, nil
}

func (i *IRD) walkDirectory(dir string, extent, size int64, entries *[]Entry, depth int) error {
	if depth > 16 {
		return errors.New("directory tree too deep")
	}
	start := extent * sectorSize
	if start+size > int64(len(i.header)) {
		return fmt.Errorf("directory extent %d out of range", extent)
	}
	records := i.header[start : start+size]

	pos := int64(0)
	for pos < size {
		length := int64(records[pos])
		if length == 0 {
			// records never cross sector boundaries: skip the padding
			pos = (pos/sectorSize + 1) * sectorSize
			continue
		}
		if pos+length > size {
			return errors.New("truncated directory record")
		}
		record := records[pos : pos+length]
		pos += length

		nameLen := int(record[32])
		if 33+nameLen > len(record) {
			return errors.New("truncated record name")
		}
		name := string(record[33 : 33+nameLen])
		// self and parent pointers
		if name == "\x00" || name == "\x01" {
			continue
		}
		// strip the ";1" version suffix
		if idx := strings.IndexByte(name, ';'); idx >= 0 {
			name = name[:idx]
		}

		childExtent := int64(binary.LittleEndian.Uint32(record[2:6]))
		childSize := int64(binary.LittleEndian.Uint32(record[10:14]))
		full := path.Join(dir, name)

		if record[25]&flagDirectory != 0 {
			if err := i.walkDirectory(full, childExtent, childSize, entries, depth+1); err != nil {
				return err
			}
			continue
		}
		*entries = append(*entries, Entry{Path: full, Size: childSize, Extent: childExtent})
	}
	return nil
}
