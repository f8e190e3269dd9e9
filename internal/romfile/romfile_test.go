package romfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectByExtension(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		kind Kind
	}{
		{"game.zip", KindArchive},
		{"game.7z", KindArchive},
		{"game.cue", KindCue},
		{"game.gdi", KindGdi},
		{"game.m3u", KindPlaylist},
		{"game.chd", KindChd},
		{"game.nsp", KindNsp},
		{"game.wbfs", KindWbfs},
		{"game.iso", KindIso},
	}
	for _, tt := range tests {
		path := writeFile(t, dir, tt.name, []byte("placeholder data"))
		file, err := Detect(path)
		if err != nil {
			t.Fatalf("Detect(%s): %v", tt.name, err)
		}
		if file.Kind != tt.kind {
			t.Errorf("Detect(%s) = %s, want %s", tt.name, file.Kind, tt.kind)
		}
	}
}

func TestDetectByMagic(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		magic []byte
		kind  Kind
	}{
		{"image.img", []byte("CISO\x00\x00\x00\x00extra"), KindCso},
		{"image.bin2", []byte("ZISO\x00\x00\x00\x00extra"), KindZso},
		{"patch.dat2", []byte("BPS1payload"), KindPatch},
		{"patch.pat", []byte("PATCHpayload"), KindPatch},
		{"disc.raw", append([]byte{0x52, 0x56, 0x5A, 0x01}, []byte("rvz")...), KindRvz},
		{"drive.img2", []byte("RDSKblock"), KindRdsk},
	}
	for _, tt := range tests {
		path := writeFile(t, dir, tt.name, tt.magic)
		file, err := Detect(path)
		if err != nil {
			t.Fatalf("Detect(%s): %v", tt.name, err)
		}
		if file.Kind != tt.kind {
			t.Errorf("Detect(%s) = %s, want %s", tt.name, file.Kind, tt.kind)
		}
	}
}

func TestDetectPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "game.sfc", bytes.Repeat([]byte{0x42}, 64))
	file, err := Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if file.Kind != KindCommon || file.Size != 64 {
		t.Errorf("file = %+v", file)
	}
}

func TestParseCue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "game.cue", []byte(`FILE "Game (Track 1).bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
FILE "Game (Track 2).bin" BINARY
  TRACK 02 AUDIO
    INDEX 00 00:00:00
    INDEX 01 00:02:00
`))

	sheet, err := ParseCue(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sheet.Bins) != 2 || sheet.Bins[0] != "Game (Track 1).bin" {
		t.Errorf("bins = %v", sheet.Bins)
	}
	if len(sheet.Tracks) != 2 || sheet.Tracks[1].Mode != "AUDIO" || sheet.Tracks[1].Bin != "Game (Track 2).bin" {
		t.Errorf("tracks = %+v", sheet.Tracks)
	}
}

func TestAsCueBin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Game.bin", bytes.Repeat([]byte{0x01}, 16))
	cuePath := writeFile(t, dir, "Game.cue", []byte("FILE \"Game.bin\" BINARY\n  TRACK 01 MODE1/2352\n    INDEX 01 00:00:00\n"))

	cue, err := Detect(cuePath)
	if err != nil {
		t.Fatal(err)
	}
	group, err := AsCueBin(cue)
	if err != nil {
		t.Fatal(err)
	}
	if len(group.Bins) != 1 || group.Bins[0].Size != 16 {
		t.Errorf("bins = %+v", group.Bins)
	}
}

func TestAsCueBinMissingBin(t *testing.T) {
	dir := t.TempDir()
	cuePath := writeFile(t, dir, "Game.cue", []byte("FILE \"Gone.bin\" BINARY\n  TRACK 01 MODE1/2352\n"))
	cue, _ := Detect(cuePath)
	if _, err := AsCueBin(cue); err == nil {
		t.Error("expected error for missing bin")
	}
}

func TestParseGdi(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "game.gdi", []byte(`3
1 0 4 2352 track01.bin 0
2 600 0 2352 track02.raw 0
3 45000 4 2352 "track 03.bin" 0
`))
	tracks, err := ParseGdi(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 3 {
		t.Fatalf("tracks = %+v", tracks)
	}
	if tracks[0].Name != "track01.bin" || tracks[0].Number != 1 {
		t.Errorf("track 0 = %+v", tracks[0])
	}
	if tracks[2].Name != "track 03.bin" {
		t.Errorf("track 2 = %+v", tracks[2])
	}
}

func TestPlaylistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Game.m3u")

	playlist, err := WritePlaylist(path, []string{"Game (Disc 1).iso", "Game (Disc 2).iso"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Game (Disc 1).iso\nGame (Disc 2).iso\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}

	entries, err := playlist.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1] != "Game (Disc 2).iso" {
		t.Errorf("entries = %v", entries)
	}
}

// buildChd assembles a minimal v5 header with one CD track metadata
// entry.
func buildChd(t *testing.T, dir string) string {
	t.Helper()
	buf := make([]byte, 2048)
	copy(buf[0:8], "MComprHD")
	binary.BigEndian.PutUint32(buf[8:12], 124)  // header size
	binary.BigEndian.PutUint32(buf[12:16], 5)   // version
	binary.BigEndian.PutUint64(buf[0x20:], 737280)
	binary.BigEndian.PutUint64(buf[0x30:], 124) // meta offset
	binary.BigEndian.PutUint32(buf[0x3C:], 2448)

	// one CHT2 metadata entry at offset 124
	meta := buf[124:]
	binary.BigEndian.PutUint32(meta[0:4], 0x43485432)
	payload := "TRACK:1 TYPE:MODE1_RAW SUBTYPE:NONE FRAMES:300"
	meta[5] = 0
	meta[6] = 0
	meta[7] = byte(len(payload))
	binary.BigEndian.PutUint64(meta[8:16], 0) // end of chain
	copy(meta[16:], payload)

	return writeFile(t, dir, "game.chd", buf)
}

func TestProbeChd(t *testing.T) {
	dir := t.TempDir()
	path := buildChd(t, dir)

	meta, err := ProbeChd(path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Type != ChdTypeCd {
		t.Errorf("type = %s, want cd", meta.Type)
	}
	if meta.TrackCount != 1 {
		t.Errorf("tracks = %d, want 1", meta.TrackCount)
	}
	if meta.LogicalBytes != 737280 {
		t.Errorf("logical bytes = %d", meta.LogicalBytes)
	}
	if meta.HasParent() {
		t.Error("did not expect a parent")
	}
}

func TestProbeChdRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "junk.chd", bytes.Repeat([]byte{0xFF}, 256))
	if _, err := ProbeChd(path); err == nil {
		t.Error("expected error for non-CHD data")
	}
}

func TestRelativePath(t *testing.T) {
	rel, err := RelativePath("/roms", "/roms/Nintendo - NES/Game.nes")
	if err != nil {
		t.Fatal(err)
	}
	if rel != "Nintendo - NES/Game.nes" {
		t.Errorf("rel = %q", rel)
	}
}
