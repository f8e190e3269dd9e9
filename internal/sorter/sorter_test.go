package sorter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/testutil"
)

func TestIsIgnored(t *testing.T) {
	opts := &Options{
		DiscardReleases: []string{"Beta", "Proto"},
		DiscardFlags:    []string{"Virtual Console"},
	}
	tests := []struct {
		name string
		want bool
	}{
		{"Game (USA)", false},
		{"Game (USA) (Beta)", true},
		{"Game (USA) (Beta 2)", true},
		{"Game (Japan) (Proto)", true},
		{"Game (USA) (Wii Virtual Console)", true},
		{"Game (USA) (Rev 1)", false},
	}
	for _, tt := range tests {
		game := &database.Game{Name: tt.name}
		if got := isIgnored(game, opts); got != tt.want {
			t.Errorf("isIgnored(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsIgnoredLanguages(t *testing.T) {
	opts := &Options{Languages: []string{"En"}}
	if isIgnored(&database.Game{Name: "Game (Japan) (En,Ja)"}, opts) {
		t.Error("expected En release to survive the language filter")
	}
	if !isIgnored(&database.Game{Name: "Game (Japan) (Ja)"}, opts) {
		t.Error("expected Ja-only release to be filtered")
	}
	// untagged games pass
	if isIgnored(&database.Game{Name: "Game (Japan)"}, opts) {
		t.Error("expected untagged release to survive")
	}
}

func TestElect(t *testing.T) {
	group := []database.Game{
		{ID: 1, Name: "Game (Europe)", Regions: "EU"},
		{ID: 2, Name: "Game (USA)", Regions: "US"},
		{ID: 3, Name: "Game (Japan)", Regions: "JP"},
	}
	opts := &Options{RegionsOne: []string{"US", "EU"}}

	winner := elect(group, opts)
	if winner == nil || winner.ID != 2 {
		t.Fatalf("winner = %+v, want Game (USA)", winner)
	}

	opts.RegionsOne = []string{"FR"}
	if winner := elect(group, opts); winner != nil {
		t.Errorf("winner = %+v, want none", winner)
	}
}

func TestElectPrefersNewRevision(t *testing.T) {
	group := []database.Game{
		{ID: 1, Name: "Game (USA)", Regions: "US"},
		{ID: 2, Name: "Game (USA) (Rev 1)", Regions: "US"},
		{ID: 3, Name: "Game (USA) (Rev 2)", Regions: "US"},
	}
	opts := &Options{RegionsOne: []string{"US"}, PreferVersions: VersionNew}
	winner := elect(group, opts)
	if winner == nil || winner.ID != 3 {
		t.Errorf("winner = %+v, want Rev 2", winner)
	}

	opts.PreferVersions = VersionOld
	winner = elect(group, opts)
	if winner == nil || winner.ID != 1 {
		t.Errorf("winner = %+v, want vanilla", winner)
	}
}

func TestElectPreferredFlag(t *testing.T) {
	group := []database.Game{
		{ID: 1, Name: "Game (USA)", Regions: "US"},
		{ID: 2, Name: "Game (USA) (Rumble Version)", Regions: "US"},
	}
	opts := &Options{RegionsOne: []string{"US"}, PreferFlags: []string{"Rumble"}}
	winner := elect(group, opts)
	if winner == nil || winner.ID != 2 {
		t.Errorf("winner = %+v, want the Rumble release", winner)
	}
}

func TestElectRegionSpread(t *testing.T) {
	group := []database.Game{
		{ID: 1, Name: "Game (USA)", Regions: "US"},
		{ID: 2, Name: "Game (USA, Europe)", Regions: "US-EU"},
	}
	opts := &Options{RegionsOne: []string{"US"}, PreferRegions: RegionWide}
	if winner := elect(group, opts); winner == nil || winner.ID != 2 {
		t.Errorf("wide winner = %+v", winner)
	}
	opts.PreferRegions = RegionNarrow
	if winner := elect(group, opts); winner == nil || winner.ID != 1 {
		t.Errorf("narrow winner = %+v", winner)
	}
}

// TestSortRoutes exercises the full 1G1R scenario: USA goes to 1G1R,
// Europe stays in the all-regions tree, Japan lands in trash.
func TestSortRoutes(t *testing.T) {
	db := testutil.TmpDB(t)
	romDir := testutil.TmpDirs(t)

	systemID, err := database.CreateSystem(db, database.SystemInput{Name: "Test System", Merging: database.MergingSplit})
	if err != nil {
		t.Fatal(err)
	}
	system, _ := database.FindSystemByID(db, systemID)

	parentID, _ := database.CreateGame(db, database.GameInput{SystemID: systemID, Name: "Game (Europe)", Regions: "EU"})
	usaID, _ := database.CreateGame(db, database.GameInput{SystemID: systemID, Name: "Game (USA)", Regions: "US", ParentID: &parentID})
	japanID, _ := database.CreateGame(db, database.GameInput{SystemID: systemID, Name: "Game (Japan)", Regions: "JP", ParentID: &parentID})

	games := map[int64]string{parentID: "Game (Europe)", usaID: "Game (USA)", japanID: "Game (Japan)"}
	for id, name := range games {
		romID, _ := database.CreateRom(db, database.RomInput{GameID: id, Name: name + ".bin", Size: 4})
		rel := "Test System/" + name + ".bin"
		abs := filepath.Join(romDir, filepath.FromSlash(rel))
		os.MkdirAll(filepath.Dir(abs), 0o755)
		if err := os.WriteFile(abs, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
		romfileID, _ := database.CreateRomfile(db, rel, 4, database.RomfileTypeRegular, nil)
		database.UpdateRomRomfile(db, romID, &romfileID)
	}

	opts := &Options{
		RegionsAll: []string{"US", "EU"},
		RegionsOne: []string{"US", "EU"},
		Scheme:     layout.SubfolderNone,
	}
	var out bytes.Buffer
	if err := Sort(db, system, opts, &out); err != nil {
		t.Fatal(err)
	}

	assertExists(t, filepath.Join(romDir, "Test System", "1G1R", "Game (USA).bin"))
	assertExists(t, filepath.Join(romDir, "Test System", "Game (Europe).bin"))
	assertExists(t, filepath.Join(romDir, "Test System", "Trash", "Game (Japan).bin"))

	usa, _ := database.FindGameByID(db, usaID)
	if usa.Sorting != database.SortingOneRegion {
		t.Errorf("usa sorting = %d", usa.Sorting)
	}
	japan, _ := database.FindGameByID(db, japanID)
	if japan.Sorting != database.SortingIgnored {
		t.Errorf("japan sorting = %d", japan.Sorting)
	}
}

func TestSortStrict(t *testing.T) {
	db := testutil.TmpDB(t)
	romDir := testutil.TmpDirs(t)

	systemID, _ := database.CreateSystem(db, database.SystemInput{Name: "Strict System", Merging: database.MergingSplit})
	system, _ := database.FindSystemByID(db, systemID)

	parentID, _ := database.CreateGame(db, database.GameInput{SystemID: systemID, Name: "Game (Europe)", Regions: "EU"})
	database.CreateGame(db, database.GameInput{SystemID: systemID, Name: "Game (USA)", Regions: "US", ParentID: &parentID})

	for _, name := range []string{"Game (Europe)", "Game (USA)"} {
		game, _ := database.FindGameByNameAndSystemID(db, name, systemID)
		romID, _ := database.CreateRom(db, database.RomInput{GameID: game.ID, Name: name + ".bin", Size: 4})
		rel := "Strict System/" + name + ".bin"
		abs := filepath.Join(romDir, filepath.FromSlash(rel))
		os.MkdirAll(filepath.Dir(abs), 0o755)
		os.WriteFile(abs, []byte("data"), 0o644)
		romfileID, _ := database.CreateRomfile(db, rel, 4, database.RomfileTypeRegular, nil)
		database.UpdateRomRomfile(db, romID, &romfileID)
	}

	opts := &Options{
		RegionsAll: []string{"US", "EU"},
		RegionsOne: []string{"US"},
		Strict:     true,
		Scheme:     layout.SubfolderNone,
	}
	var out bytes.Buffer
	if err := Sort(db, system, opts, &out); err != nil {
		t.Fatal(err)
	}

	assertExists(t, filepath.Join(romDir, "Strict System", "1G1R", "Game (USA).bin"))
	// strict trashes the survivor that lost the election
	assertExists(t, filepath.Join(romDir, "Strict System", "Trash", "Game (Europe).bin"))
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}
