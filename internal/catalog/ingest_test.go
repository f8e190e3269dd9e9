package catalog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
	"github.com/romkeeper/romkeeper/internal/testutil"
)

const datV1 = `<?xml version="1.0"?>
<datafile>
	<header>
		<name>Test System (Parent-Clone)</name>
		<description>Test System</description>
		<version>20240101</version>
	</header>
	<game name="Game (USA)">
		<description>Game (USA)</description>
		<rom name="Game (USA).bin" size="4" crc="adf3f363"/>
	</game>
	<game name="Game (Japan)" cloneof="Game (USA)">
		<description>Game (Japan)</description>
		<rom name="Game (Japan).bin" size="4" crc="11111111"/>
	</game>
	<game name="Gone (USA)">
		<description>Gone (USA)</description>
		<rom name="Gone (USA).bin" size="8" crc="22222222"/>
	</game>
</datafile>`

// datV2 renames the first game, drops the third, keeps fingerprints
const datV2 = `<?xml version="1.0"?>
<datafile>
	<header>
		<name>Test System (Parent-Clone)</name>
		<description>Test System</description>
		<version>20240301</version>
	</header>
	<game name="Game - Special Edition (USA)">
		<description>Game - Special Edition (USA)</description>
		<rom name="Game - Special Edition (USA).bin" size="4" crc="adf3f363"/>
	</game>
</datafile>`

func writeDat(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dat")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func importTestDat(t *testing.T, db *database.DB, content string, opts Options) (*Report, error) {
	t.Helper()
	var out bytes.Buffer
	return ImportDat(db, writeDat(t, content), opts, progress.Nop{}, &out)
}

func TestImportDat(t *testing.T) {
	db := testutil.TmpDB(t)
	testutil.TmpDirs(t)

	report, err := importTestDat(t, db, datV1, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.SystemName != "Test System" {
		t.Errorf("system name = %q", report.SystemName)
	}
	if report.GameCount != 3 || report.RomCount != 3 {
		t.Errorf("counts = %d games, %d roms", report.GameCount, report.RomCount)
	}

	system, err := database.FindSystemByName(db, "Test System")
	if err != nil || system == nil {
		t.Fatalf("system = %+v, %v", system, err)
	}
	if system.Version != "20240101" {
		t.Errorf("version = %q", system.Version)
	}

	clone, _ := database.FindGameByNameAndSystemID(db, "Game (Japan)", system.ID)
	if clone == nil || clone.ParentID == nil {
		t.Fatalf("clone = %+v", clone)
	}
	parent, _ := database.FindGameByID(db, *clone.ParentID)
	if parent.Name != "Game (USA)" {
		t.Errorf("parent = %q", parent.Name)
	}
	if clone.Regions != "JP" || parent.Regions != "US" {
		t.Errorf("regions = %q / %q", clone.Regions, parent.Regions)
	}
}

func TestImportDatInfoMode(t *testing.T) {
	db := testutil.TmpDB(t)

	report, err := importTestDat(t, db, datV1, Options{Info: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.Imported {
		t.Error("info mode must not import")
	}
	system, _ := database.FindSystemByName(db, "Test System")
	if system != nil {
		t.Error("info mode must not touch the database")
	}
}

func TestImportDatVersionGate(t *testing.T) {
	db := testutil.TmpDB(t)
	testutil.TmpDirs(t)

	if _, err := importTestDat(t, db, datV2, Options{}); err != nil {
		t.Fatal(err)
	}
	// the older DAT is rejected
	if _, err := importTestDat(t, db, datV1, Options{}); !errors.Is(err, ErrVersionTooOld) {
		t.Errorf("err = %v, want ErrVersionTooOld", err)
	}
	// unless forced
	if _, err := importTestDat(t, db, datV1, Options{Force: true}); err != nil {
		t.Errorf("forced import failed: %v", err)
	}
}

func TestImportDatReconciliation(t *testing.T) {
	db := testutil.TmpDB(t)
	testutil.TmpDirs(t)

	if _, err := importTestDat(t, db, datV1, Options{}); err != nil {
		t.Fatal(err)
	}
	system, _ := database.FindSystemByName(db, "Test System")

	if _, err := importTestDat(t, db, datV2, Options{}); err != nil {
		t.Fatal(err)
	}

	games, _ := database.FindGamesBySystemID(db, system.ID)
	if len(games) != 1 || games[0].Name != "Game - Special Edition (USA)" {
		t.Fatalf("games = %+v", games)
	}
}

// TestImportDatRematch covers the orphan rematch: a romfile imported
// under DAT v1 follows its fingerprint to the renamed game in v2.
func TestImportDatRematch(t *testing.T) {
	db := testutil.TmpDB(t)
	romDir := testutil.TmpDirs(t)

	if _, err := importTestDat(t, db, datV1, Options{}); err != nil {
		t.Fatal(err)
	}
	system, _ := database.FindSystemByName(db, "Test System")
	game, _ := database.FindGameByNameAndSystemID(db, "Game (USA)", system.ID)
	roms, _ := database.FindRomsByGameID(db, game.ID)

	// place the physical file and assign it; "data" has crc adf3f363
	rel := "Test System/Game (USA).bin"
	abs := filepath.Join(romDir, filepath.FromSlash(rel))
	os.MkdirAll(filepath.Dir(abs), 0o755)
	if err := os.WriteFile(abs, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	romfileID, _ := database.CreateRomfile(db, rel, 4, database.RomfileTypeRegular, nil)
	database.UpdateRomRomfile(db, roms[0].ID, &romfileID)

	if _, err := importTestDat(t, db, datV2, Options{}); err != nil {
		t.Fatal(err)
	}

	renamed, _ := database.FindGameByNameAndSystemID(db, "Game - Special Edition (USA)", system.ID)
	newRoms, _ := database.FindRomsByGameID(db, renamed.ID)
	if len(newRoms) != 1 || newRoms[0].RomfileID == nil {
		t.Fatalf("roms = %+v", newRoms)
	}
	row, _ := database.FindRomfileByID(db, *newRoms[0].RomfileID)
	if row.Path != "Test System/Game - Special Edition (USA).bin" {
		t.Errorf("path = %q", row.Path)
	}
	if _, err := os.Stat(filepath.Join(romDir, filepath.FromSlash(row.Path))); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestImportDatIdempotent(t *testing.T) {
	db := testutil.TmpDB(t)
	testutil.TmpDirs(t)

	if _, err := importTestDat(t, db, datV1, Options{}); err != nil {
		t.Fatal(err)
	}
	// same version is rejected without force: nothing mutates
	if _, err := importTestDat(t, db, datV1, Options{}); !errors.Is(err, ErrVersionTooOld) {
		t.Fatalf("expected version gate, got %v", err)
	}

	system, _ := database.FindSystemByName(db, "Test System")
	games, _ := database.FindGamesBySystemID(db, system.ID)
	if len(games) != 3 {
		t.Errorf("games = %d", len(games))
	}
}

func TestOpenDatMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.dat")
	os.WriteFile(path, []byte("this is not xml"), 0o644)
	if _, err := openDat(path); err == nil {
		t.Error("expected parse error")
	}
}
