package database

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSystem(t *testing.T, db *DB, name string) int64 {
	t.Helper()
	id, err := CreateSystem(db, SystemInput{Name: name, Version: "1", Merging: MergingSplit})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSystemRoundTrip(t *testing.T) {
	db := openTestDB(t)

	id := createTestSystem(t, db, "Nintendo - NES")
	system, err := FindSystemByName(db, "Nintendo - NES")
	if err != nil {
		t.Fatal(err)
	}
	if system == nil || system.ID != id || system.Merging != MergingSplit {
		t.Fatalf("system = %+v", system)
	}

	custom := "NES"
	if err := UpdateSystem(db, id, SystemInput{Name: "Nintendo - NES", CustomName: &custom, Version: "2", Merging: MergingSplit}); err != nil {
		t.Fatal(err)
	}
	system, _ = FindSystemByID(db, id)
	if system.EffectiveName() != "NES" || system.Version != "2" {
		t.Errorf("system = %+v", system)
	}

	missing, err := FindSystemByName(db, "does not exist")
	if err != nil || missing != nil {
		t.Errorf("missing = %+v, %v", missing, err)
	}
}

func TestGameAndRomLookup(t *testing.T) {
	db := openTestDB(t)
	systemID := createTestSystem(t, db, "Test System")

	gameID, err := CreateGame(db, GameInput{SystemID: systemID, Name: "Game (USA)", Regions: "US"})
	if err != nil {
		t.Fatal(err)
	}
	crc := "abcd1234"
	romID, err := CreateRom(db, RomInput{GameID: gameID, Name: "Game (USA).bin", Size: 512, Crc: &crc})
	if err != nil {
		t.Fatal(err)
	}

	roms, err := FindRomsBySizeAndHashAndSystemID(db, 512, "crc", "abcd1234", systemID)
	if err != nil {
		t.Fatal(err)
	}
	if len(roms) != 1 || roms[0].ID != romID {
		t.Fatalf("roms = %+v", roms)
	}

	// wrong size misses
	roms, _ = FindRomsBySizeAndHashAndSystemID(db, 513, "crc", "abcd1234", systemID)
	if len(roms) != 0 {
		t.Errorf("expected no match, got %+v", roms)
	}

	if _, err := FindRomsBySizeAndHashAndSystemID(db, 512, "sha256", "x", systemID); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestRomfileAssignmentAndOrphans(t *testing.T) {
	db := openTestDB(t)
	systemID := createTestSystem(t, db, "Test System")
	gameID, _ := CreateGame(db, GameInput{SystemID: systemID, Name: "Game (USA)"})
	romID, _ := CreateRom(db, RomInput{GameID: gameID, Name: "Game (USA).bin", Size: 4})

	romfileID, err := CreateRomfile(db, "Test System/Game (USA).bin", 4, RomfileTypeRegular, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := UpdateRomRomfile(db, romID, &romfileID); err != nil {
		t.Fatal(err)
	}

	orphans, err := FindOrphanRomfiles(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 0 {
		t.Errorf("orphans = %+v", orphans)
	}

	// unassign: the romfile becomes an orphan
	if err := UpdateRomRomfile(db, romID, nil); err != nil {
		t.Fatal(err)
	}
	orphans, _ = FindOrphanRomfiles(db)
	if len(orphans) != 1 || orphans[0].ID != romfileID {
		t.Errorf("orphans = %+v", orphans)
	}

	// playlist romfiles referenced by a game are not orphans
	playlistID, _ := CreateRomfile(db, "Test System/Game.m3u", 10, RomfileTypePlaylist, nil)
	if err := UpdateGamePlaylist(db, gameID, &playlistID); err != nil {
		t.Fatal(err)
	}
	orphans, _ = FindOrphanRomfiles(db)
	if len(orphans) != 1 {
		t.Errorf("orphans = %+v", orphans)
	}
}

func TestFindRomfilesInTrash(t *testing.T) {
	db := openTestDB(t)
	CreateRomfile(db, "Test System/Trash/junk.bin", 1, RomfileTypeRegular, nil)
	CreateRomfile(db, "Test System/keep.bin", 1, RomfileTypeRegular, nil)

	trashed, err := FindRomfilesInTrash(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(trashed) != 1 || trashed[0].Path != "Test System/Trash/junk.bin" {
		t.Errorf("trashed = %+v", trashed)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	db := openTestDB(t)
	systemID := createTestSystem(t, db, "Test System")

	_, err := CreateHeader(db, HeaderInput{
		SystemID: systemID,
		Name:     "No-Intro_NES",
		Size:     16,
		Rules: []HeaderRule{
			{StartOffset: 0, HexValue: "4e4553"},
			{StartOffset: 3, HexValue: "1a"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	header, err := FindHeaderBySystemID(db, systemID)
	if err != nil {
		t.Fatal(err)
	}
	if header == nil || header.Size != 16 || len(header.Rules) != 2 {
		t.Fatalf("header = %+v", header)
	}

	// re-creating replaces the previous header
	if _, err := CreateHeader(db, HeaderInput{SystemID: systemID, Name: "v2", Size: 128}); err != nil {
		t.Fatal(err)
	}
	header, _ = FindHeaderBySystemID(db, systemID)
	if header.Name != "v2" || len(header.Rules) != 0 {
		t.Errorf("header = %+v", header)
	}
}

func TestPatchIndexing(t *testing.T) {
	db := openTestDB(t)
	systemID := createTestSystem(t, db, "Test System")
	gameID, _ := CreateGame(db, GameInput{SystemID: systemID, Name: "Game"})
	romID, _ := CreateRom(db, RomInput{GameID: gameID, Name: "Game.bin"})

	for _, name := range []string{"a.bps", "b.ips"} {
		if _, err := CreatePatch(db, romID, name); err != nil {
			t.Fatal(err)
		}
	}
	patches, err := FindPatchesByRomID(db, romID)
	if err != nil {
		t.Fatal(err)
	}
	if len(patches) != 2 || patches[0].Index != 0 || patches[1].Index != 1 {
		t.Errorf("patches = %+v", patches)
	}
}

func TestComputeSystemCompletion(t *testing.T) {
	db := openTestDB(t)
	systemID := createTestSystem(t, db, "Test System")

	completeID, _ := CreateGame(db, GameInput{SystemID: systemID, Name: "Complete"})
	romID, _ := CreateRom(db, RomInput{GameID: completeID, Name: "Complete.bin", Size: 1})
	romfileID, _ := CreateRomfile(db, "Test System/Complete.bin", 1, RomfileTypeRegular, nil)
	UpdateRomRomfile(db, romID, &romfileID)

	incompleteID, _ := CreateGame(db, GameInput{SystemID: systemID, Name: "Missing"})
	CreateRom(db, RomInput{GameID: incompleteID, Name: "Missing.bin", Size: 1})

	ignoredID, _ := CreateGame(db, GameInput{SystemID: systemID, Name: "Ignored"})
	CreateRom(db, RomInput{GameID: ignoredID, Name: "Ignored.bin", Size: 1})
	UpdateGameSorting(db, ignoredID, SortingIgnored)

	if err := ComputeSystemCompletion(db, systemID); err != nil {
		t.Fatal(err)
	}
	system, _ := FindSystemByID(db, systemID)
	if system.CompletedGames != 1 || system.TotalGames != 2 {
		t.Errorf("completion = %d/%d, want 1/2", system.CompletedGames, system.TotalGames)
	}

	game, _ := FindGameByID(db, completeID)
	if !game.Complete {
		t.Error("expected game to be complete")
	}
}

func TestTransactionRollback(t *testing.T) {
	db := openTestDB(t)

	err := db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := CreateSystem(tx, SystemInput{Name: "Doomed", Merging: MergingSplit}); err != nil {
			return err
		}
		return sql.ErrTxDone // any error rolls back
	})
	if err == nil {
		t.Fatal("expected error")
	}
	system, _ := FindSystemByName(db, "Doomed")
	if system != nil {
		t.Error("expected rollback to discard the system")
	}
}

func TestDeleteGameCascades(t *testing.T) {
	db := openTestDB(t)
	systemID := createTestSystem(t, db, "Test System")
	gameID, _ := CreateGame(db, GameInput{SystemID: systemID, Name: "Doomed"})
	CreateRom(db, RomInput{GameID: gameID, Name: "Doomed.bin", Size: 1})

	if err := DeleteGameByID(db, gameID); err != nil {
		t.Fatal(err)
	}
	games, _ := FindGamesBySystemID(db, systemID)
	if len(games) != 0 {
		t.Errorf("games = %+v", games)
	}
	roms, _ := FindRomsByGameID(db, gameID)
	if len(roms) != 0 {
		t.Errorf("expected roms to cascade, got %+v", roms)
	}
}
