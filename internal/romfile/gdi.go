package romfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GdiTrack is one track line of a Dreamcast GDI sheet.
type GdiTrack struct {
	Number int
	Name   string
}

// GdiFile is a GDI sheet plus its sibling track files.
type GdiFile struct {
	Gdi    File
	Tracks []File
}

// ParseGdi reads the track table of a GDI sheet. The first line is the
// track count; each following line is
// "<number> <lba> <type> <sector size> <name> <offset>".
func ParseGdi(path string) ([]GdiTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GDI sheet: %w", err)
	}
	defer f.Close()

	var tracks []GdiTrack
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("malformed GDI track line %q", line)
		}
		name := fields[4]
		// quoted names may contain spaces
		if strings.HasPrefix(name, `"`) {
			start := strings.Index(line, `"`)
			end := strings.LastIndex(line, `"`)
			if end > start {
				name = line[start+1 : end]
			}
		}
		tracks = append(tracks, GdiTrack{Number: atoi(fields[0]), Name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read GDI sheet: %w", err)
	}
	return tracks, nil
}

// AsGdi parses the sheet behind a detected .gdi file and resolves its
// sibling tracks.
func AsGdi(gdi *File) (*GdiFile, error) {
	tracks, err := ParseGdi(gdi.Path)
	if err != nil {
		return nil, err
	}
	group := &GdiFile{Gdi: *gdi}
	dir := filepath.Dir(gdi.Path)
	for _, track := range tracks {
		path := filepath.Join(dir, track.Name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("missing track %q: %w", track.Name, err)
		}
		group.Tracks = append(group.Tracks, File{Path: path, Size: info.Size(), Kind: KindBin})
	}
	return group, nil
}
