package romfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// PlaylistFile is an M3U playlist referencing sibling disc files.
type PlaylistFile struct {
	File
}

// Entries returns the referenced filenames in file order.
func (p *PlaylistFile) Entries() ([]string, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return entries, nil
}

// WritePlaylist writes an M3U file listing the given sibling names,
// one per line with a trailing newline.
func WritePlaylist(path string, names []string) (*PlaylistFile, error) {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write playlist: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat playlist: %w", err)
	}
	return &PlaylistFile{File: File{Path: path, Size: info.Size(), Kind: KindPlaylist}}, nil
}
