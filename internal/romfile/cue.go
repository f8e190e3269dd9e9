package romfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/romkeeper/romkeeper/internal/checksum"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
)

var (
	cueFileRegex  = regexp.MustCompile(`^\s*FILE\s+"([^"]+)"\s+(\S+)`)
	cueTrackRegex = regexp.MustCompile(`^\s*TRACK\s+(\d+)\s+(\S+)`)
)

// CueTrack is one TRACK entry of a CUE sheet.
type CueTrack struct {
	Number int
	Mode   string
	Bin    string // owning FILE entry
}

// CueSheet is a parsed CUE sheet: ordered bin files and their tracks.
type CueSheet struct {
	Bins   []string
	Tracks []CueTrack
}

// ParseCue reads a CUE sheet from disk.
func ParseCue(path string) (*CueSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CUE sheet: %w", err)
	}
	defer f.Close()

	var sheet CueSheet
	var currentBin string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := cueFileRegex.FindStringSubmatch(line); m != nil {
			currentBin = m[1]
			sheet.Bins = append(sheet.Bins, currentBin)
			continue
		}
		if m := cueTrackRegex.FindStringSubmatch(line); m != nil {
			sheet.Tracks = append(sheet.Tracks, CueTrack{
				Number: atoi(m[1]),
				Mode:   m[2],
				Bin:    currentBin,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read CUE sheet: %w", err)
	}
	if len(sheet.Bins) == 0 {
		return nil, fmt.Errorf("CUE sheet %s names no files", filepath.Base(path))
	}
	return &sheet, nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// CueBinFile is a CUE sheet plus its ordered sibling bin files.
type CueBinFile struct {
	Cue   File
	Bins  []File
	Sheet *CueSheet
}

// AsCueBin parses the sheet behind a detected .cue file and resolves
// its sibling bins.
func AsCueBin(cue *File) (*CueBinFile, error) {
	sheet, err := ParseCue(cue.Path)
	if err != nil {
		return nil, err
	}
	group := &CueBinFile{Cue: *cue, Sheet: sheet}
	dir := filepath.Dir(cue.Path)
	for _, bin := range sheet.Bins {
		path := filepath.Join(dir, bin)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("missing bin %q: %w", bin, err)
		}
		group.Bins = append(group.Bins, File{Path: path, Size: info.Size(), Kind: KindBin})
	}
	return group, nil
}

// Fingerprints hashes each bin independently, in sheet order.
func (c *CueBinFile) Fingerprints(algorithm checksum.Algorithm, sink progress.Sink) ([]Fingerprint, error) {
	var fingerprints []Fingerprint
	for i := range c.Bins {
		fp, err := c.Bins[i].Hash(algorithm, nil, sink)
		if err != nil {
			return nil, err
		}
		fingerprints = append(fingerprints, fp)
	}
	return fingerprints, nil
}

// Check verifies the bins against the expected roms by name.
func (c *CueBinFile) Check(roms []database.Rom, algorithm checksum.Algorithm, sink progress.Sink) error {
	fingerprints, err := c.Fingerprints(algorithm, sink)
	if err != nil {
		return err
	}
	byName := make(map[string]Fingerprint, len(fingerprints))
	for _, fp := range fingerprints {
		byName[strings.ToLower(fp.Name)] = fp
	}
	for i := range roms {
		if strings.EqualFold(roms[i].Name, c.Cue.Name()) {
			continue // the sheet itself is text, not fingerprinted here
		}
		fp, ok := byName[strings.ToLower(roms[i].Name)]
		if !ok || !fp.MatchesRom(&roms[i]) {
			return fmt.Errorf("%w: %s", ErrMismatch, roms[i].Name)
		}
	}
	return nil
}
