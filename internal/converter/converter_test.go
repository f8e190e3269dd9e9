package converter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/romfile"
	"github.com/romkeeper/romkeeper/internal/testutil"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in   string
		want Target
	}{
		{"original", TargetOriginal},
		{"7z", TargetSevenZip},
		{"ZIP", TargetZip},
		{"chd", TargetChd},
		{"wbfs", TargetWbfs},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseTarget(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseTarget("tar"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestKindByExtensionName(t *testing.T) {
	tests := []struct {
		path string
		want romfile.Kind
	}{
		{"System/Game.zip", romfile.KindArchive},
		{"System/Game.chd", romfile.KindChd},
		{"System/Game.cue", romfile.KindCue},
		{"System/Game.iso", romfile.KindIso},
		{"System/Game.nes", romfile.KindCommon},
	}
	for _, tt := range tests {
		if got := kindByExtensionName(tt.path); got != tt.want {
			t.Errorf("kindByExtensionName(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestTargetOfKind(t *testing.T) {
	if !targetOfKind(romfile.KindChd, TargetChd) {
		t.Error("chd is already CHD")
	}
	if targetOfKind(romfile.KindIso, TargetChd) {
		t.Error("iso is not CHD")
	}
	if !targetOfKind(romfile.KindCue, TargetOriginal) {
		t.Error("cue is original")
	}
	if !targetOfKind(romfile.KindArchive, TargetZip) {
		t.Error("archives partition together for ZIP")
	}
}

type testEnv struct {
	db     *database.DB
	romDir string
	system *database.System
	conv   *Converter
	out    *bytes.Buffer
}

func newTestEnv(t *testing.T, arcade bool) *testEnv {
	t.Helper()
	db := testutil.TmpDB(t)
	romDir := testutil.TmpDirs(t)

	systemID, err := database.CreateSystem(db, database.SystemInput{Name: "Conv System", Arcade: arcade, Merging: database.MergingSplit})
	if err != nil {
		t.Fatal(err)
	}
	system, _ := database.FindSystemByID(db, systemID)

	out := &bytes.Buffer{}
	conv, err := New(context.Background(), db, system, out)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{db: db, romDir: romDir, system: system, conv: conv, out: out}
}

func (e *testEnv) addImportedGame(t *testing.T, gameName, romName string, data []byte) database.Game {
	t.Helper()
	gameID, _ := database.CreateGame(e.db, database.GameInput{SystemID: e.system.ID, Name: gameName})
	romID, _ := database.CreateRom(e.db, database.RomInput{GameID: gameID, Name: romName, Size: int64(len(data))})
	rel := "Conv System/" + romName
	abs := filepath.Join(e.romDir, filepath.FromSlash(rel))
	os.MkdirAll(filepath.Dir(abs), 0o755)
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		t.Fatal(err)
	}
	romfileID, _ := database.CreateRomfile(e.db, rel, int64(len(data)), database.RomfileTypeRegular, nil)
	database.UpdateRomRomfile(e.db, romID, &romfileID)
	game, _ := database.FindGameByID(e.db, gameID)
	return *game
}

func TestConvertGamesArcadeGuard(t *testing.T) {
	e := newTestEnv(t, true)
	game := e.addImportedGame(t, "puckman", "pm1.bin", []byte("data"))

	err := e.conv.ConvertGames(context.Background(), e.db, []database.Game{game}, TargetChd, "")
	if err == nil {
		t.Error("expected arcade restriction error")
	}
	// ORIGINAL stays allowed
	if err := e.conv.ConvertGames(context.Background(), e.db, []database.Game{game}, TargetOriginal, ""); err != nil {
		t.Errorf("original conversion failed: %v", err)
	}
}

func TestConvertGamesHeaderGuard(t *testing.T) {
	e := newTestEnv(t, false)
	if _, err := database.CreateHeader(e.db, database.HeaderInput{
		SystemID: e.system.ID,
		Size:     16,
		Rules:    []database.HeaderRule{{StartOffset: 0, HexValue: "4e4553"}},
	}); err != nil {
		t.Fatal(err)
	}
	conv, err := New(context.Background(), e.db, e.system, e.out)
	if err != nil {
		t.Fatal(err)
	}
	game := e.addImportedGame(t, "Game (USA)", "Game (USA).nes", []byte("data"))

	if err := conv.ConvertGames(context.Background(), e.db, []database.Game{game}, TargetChd, ""); err == nil {
		t.Error("expected headered dumps to refuse CHD")
	}
}

func TestConvertGamesSameFormatIsNoop(t *testing.T) {
	e := newTestEnv(t, false)
	game := e.addImportedGame(t, "Game (USA)", "Game (USA).bin", []byte("data"))

	if err := e.conv.ConvertGames(context.Background(), e.db, []database.Game{game}, TargetOriginal, ""); err != nil {
		t.Fatal(err)
	}
	// file untouched in place
	if _, err := os.Stat(filepath.Join(e.romDir, "Conv System", "Game (USA).bin")); err != nil {
		t.Errorf("file moved unexpectedly: %v", err)
	}
}

func TestConvertGamesExportOriginal(t *testing.T) {
	e := newTestEnv(t, false)
	game := e.addImportedGame(t, "Game (USA)", "Game (USA).bin", []byte("data"))

	dest := t.TempDir()
	if err := e.conv.ConvertGames(context.Background(), e.db, []database.Game{game}, TargetOriginal, dest); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "Game (USA).bin"))
	if err != nil || string(data) != "data" {
		t.Errorf("export = %q, %v", data, err)
	}
	// the library copy survives
	if _, err := os.Stat(filepath.Join(e.romDir, "Conv System", "Game (USA).bin")); err != nil {
		t.Errorf("original missing: %v", err)
	}
}

func TestConvertGamesSkipsUnsupportedPair(t *testing.T) {
	e := newTestEnv(t, false)
	// a plain cartridge dump has no path to CSO
	game := e.addImportedGame(t, "Game (USA)", "Game (USA).sfc", []byte("data"))

	if err := e.conv.ConvertGames(context.Background(), e.db, []database.Game{game}, TargetCso, ""); err != nil {
		t.Fatalf("unsupported pairs must be skipped, not fatal: %v", err)
	}
	if !bytes.Contains(e.out.Bytes(), []byte("Skipping")) {
		t.Errorf("expected a skip notice, got %q", e.out.String())
	}
}
