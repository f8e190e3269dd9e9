package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
	"github.com/romkeeper/romkeeper/internal/testutil"
)

type fixture struct {
	db     *database.DB
	romDir string
	system *database.System
	imp    *Importer
	out    *bytes.Buffer
}

func newFixture(t *testing.T, header *database.HeaderInput) *fixture {
	t.Helper()
	db := testutil.TmpDB(t)
	romDir := testutil.TmpDirs(t)

	systemID, err := database.CreateSystem(db, database.SystemInput{Name: "Test System", Merging: database.MergingSplit})
	if err != nil {
		t.Fatal(err)
	}
	if header != nil {
		header.SystemID = systemID
		if _, err := database.CreateHeader(db, *header); err != nil {
			t.Fatal(err)
		}
	}
	system, _ := database.FindSystemByID(db, systemID)

	out := &bytes.Buffer{}
	imp, err := New(db, system, progress.Nop{}, out, DeterministicPrompter{})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{db: db, romDir: romDir, system: system, imp: imp, out: out}
}

func (f *fixture) addGameWithRom(t *testing.T, gameName, romName string, size int64, crc string) (*database.Game, *database.Rom) {
	t.Helper()
	gameID, err := database.CreateGame(f.db, database.GameInput{SystemID: f.system.ID, Name: gameName})
	if err != nil {
		t.Fatal(err)
	}
	romID, err := database.CreateRom(f.db, database.RomInput{GameID: gameID, Name: romName, Size: size, Crc: &crc})
	if err != nil {
		t.Fatal(err)
	}
	game, _ := database.FindGameByID(f.db, gameID)
	rom, _ := database.FindRomByID(f.db, romID)
	return game, rom
}

func (f *fixture) stage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportCommon(t *testing.T) {
	f := newFixture(t, nil)
	// crc32("data") = adf3f363
	f.addGameWithRom(t, "Game (USA)", "Game (USA).bin", 4, "adf3f363")
	src := f.stage(t, "dump.bin", []byte("data"))

	if err := f.imp.ImportPath(context.Background(), f.db, src, Options{}); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(f.romDir, "Test System", "Game (USA).bin")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("canonical file missing: %v", err)
	}
	// move semantics: the source is gone
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("expected source to be removed")
	}

	row, _ := database.FindRomfileByPath(f.db, "Test System/Game (USA).bin")
	if row == nil || row.Size != 4 {
		t.Fatalf("romfile = %+v", row)
	}
	roms, _ := database.FindRomsByRomfileID(f.db, row.ID)
	if len(roms) != 1 || roms[0].Name != "Game (USA).bin" {
		t.Errorf("roms = %+v", roms)
	}
}

func TestImportKeepSource(t *testing.T) {
	f := newFixture(t, nil)
	f.addGameWithRom(t, "Game (USA)", "Game (USA).bin", 4, "adf3f363")
	src := f.stage(t, "dump.bin", []byte("data"))

	if err := f.imp.ImportPath(context.Background(), f.db, src, Options{KeepSource: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("expected source to survive with copy semantics")
	}
}

// TestImportHeaderedDump covers the header-strip scenario: a 272-byte
// headered dump identifies against a 256-byte catalog rom.
func TestImportHeaderedDump(t *testing.T) {
	f := newFixture(t, &database.HeaderInput{
		Name: "No-Intro_NES",
		Size: 16,
		Rules: []database.HeaderRule{
			{StartOffset: 0, HexValue: "4e4553"},
		},
	})

	payload := bytes.Repeat([]byte{0xAB}, 256)
	headered := append([]byte("NES\x1a"), bytes.Repeat([]byte{0x00}, 12)...)
	headered = append(headered, payload...)

	crc := crcOf(t, payload)
	f.addGameWithRom(t, "Game (USA)", "Game (USA).nes", 256, crc)

	src := f.stage(t, "dump.nes", headered)
	if err := f.imp.ImportPath(context.Background(), f.db, src, Options{}); err != nil {
		t.Fatal(err)
	}

	row, _ := database.FindRomfileByPath(f.db, "Test System/Game (USA).nes")
	if row == nil {
		t.Fatal("romfile missing")
	}
	// the romfile keeps the on-disk size, the rom the stripped one
	if row.Size != 272 {
		t.Errorf("romfile size = %d, want 272", row.Size)
	}
	roms, _ := database.FindRomsByRomfileID(f.db, row.ID)
	if len(roms) != 1 || roms[0].Size != 256 {
		t.Errorf("roms = %+v", roms)
	}
}

// TestImportDuplicate covers the duplicate scenario: the second file
// with an identical fingerprint is reported and left in place.
func TestImportDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	f.addGameWithRom(t, "Game (USA)", "Game (USA).bin", 4, "adf3f363")

	first := f.stage(t, "first.bin", []byte("data"))
	if err := f.imp.ImportPath(context.Background(), f.db, first, Options{}); err != nil {
		t.Fatal(err)
	}

	second := f.stage(t, "second.bin", []byte("data"))
	err := f.imp.ImportPath(context.Background(), f.db, second, Options{Unattended: NoToAll})
	var dup *ErrDuplicate
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if _, statErr := os.Stat(second); statErr != nil {
		t.Error("expected duplicate source to stay in place")
	}

	// the original assignment is untouched
	row, _ := database.FindRomfileByPath(f.db, "Test System/Game (USA).bin")
	roms, _ := database.FindRomsByRomfileID(f.db, row.ID)
	if len(roms) != 1 {
		t.Errorf("roms = %+v", roms)
	}
}

func TestImportUnmatchedToTrash(t *testing.T) {
	f := newFixture(t, nil)
	src := f.stage(t, "junk.bin", []byte("nothing matches this"))

	if err := f.imp.ImportPath(context.Background(), f.db, src, Options{TrashUnmatched: true}); err != nil {
		t.Fatal(err)
	}
	trash := filepath.Join(f.romDir, "Test System", "Trash", "junk.bin")
	if _, err := os.Stat(trash); err != nil {
		t.Errorf("expected file in trash: %v", err)
	}
}

func TestImportUnmatchedReported(t *testing.T) {
	f := newFixture(t, nil)
	src := f.stage(t, "junk.bin", []byte("nothing matches this"))

	err := f.imp.ImportPath(context.Background(), f.db, src, Options{})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want ErrNoMatch", err)
	}
	if _, statErr := os.Stat(src); statErr != nil {
		t.Error("expected unmatched source to stay in place")
	}
}

func TestImportCueBin(t *testing.T) {
	f := newFixture(t, nil)

	cueData := []byte("FILE \"Game (USA).bin\" BINARY\n  TRACK 01 MODE1/2352\n    INDEX 01 00:00:00\n")
	binData := []byte("data")

	gameID, _ := database.CreateGame(f.db, database.GameInput{SystemID: f.system.ID, Name: "Game (USA)"})
	cueCrc := crcOf(t, cueData)
	binCrc := crcOf(t, binData)
	database.CreateRom(f.db, database.RomInput{GameID: gameID, Name: "Game (USA).cue", Size: int64(len(cueData)), Crc: &cueCrc})
	database.CreateRom(f.db, database.RomInput{GameID: gameID, Name: "Game (USA).bin", Size: int64(len(binData)), Crc: &binCrc})

	dir := t.TempDir()
	cuePath := filepath.Join(dir, "Game (USA).cue")
	os.WriteFile(cuePath, cueData, 0o644)
	os.WriteFile(filepath.Join(dir, "Game (USA).bin"), binData, 0o644)

	if err := f.imp.ImportPath(context.Background(), f.db, cuePath, Options{}); err != nil {
		t.Fatal(err)
	}

	// multi-file games nest in a game directory
	for _, name := range []string{"Game (USA).cue", "Game (USA).bin"} {
		path := filepath.Join(f.romDir, "Test System", "Game (USA)", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func crcOf(t *testing.T, data []byte) string {
	t.Helper()
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))
}
