// Package catalog ingests DAT files into the relational catalog and
// reconciles updates with previously imported state.
package catalog

import (
	"archive/zip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/romkeeper/romkeeper/internal/checksum"
	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/progress"
	"github.com/romkeeper/romkeeper/internal/region"
	"github.com/romkeeper/romkeeper/internal/romfile"
	"github.com/romkeeper/romkeeper/lib/datfile"
)

// ErrVersionTooOld is returned when the DAT is not newer than the
// stored catalog and --force was not given.
var ErrVersionTooOld = errors.New("DAT version is not newer than the stored one")

// Options are the user overrides of a DAT import.
type Options struct {
	Info            bool
	Force           bool
	CustomName      string
	CustomExtension string
}

// Report summarizes one DAT import.
type Report struct {
	SystemName string
	Version    string
	GameCount  int
	RomCount   int
	Arcade     bool
	Imported   bool
}

// ImportDat parses the DAT at path and, unless in info mode, ingests
// it transactionally.
func ImportDat(db *database.DB, path string, opts Options, sink progress.Sink, out io.Writer) (*Report, error) {
	dat, err := openDat(path)
	if err != nil {
		return nil, err
	}

	systemName := region.StripQualifiers(dat.Header.Name)
	arcade := strings.Contains(dat.Header.Name, "Arcade") ||
		strings.Contains(dat.Header.Name, "MAME") ||
		strings.Contains(dat.Header.Homepage, "mamedev")

	report := &Report{
		SystemName: systemName,
		Version:    dat.Header.Version,
		GameCount:  len(dat.Games),
		Arcade:     arcade,
	}
	for _, game := range dat.Games {
		report.RomCount += len(game.ROMs)
	}
	if opts.Info {
		return report, nil
	}

	err = db.WithTransaction(func(tx *sql.Tx) error {
		systemID, err := upsertSystem(tx, dat, systemName, arcade, opts)
		if err != nil {
			return err
		}
		if err := importDetector(tx, systemID, path, dat.Header.ClrMamePro); err != nil {
			return err
		}
		if err := upsertGames(tx, systemID, dat.Games); err != nil {
			return err
		}
		if err := reconcile(tx, systemID, dat.Games); err != nil {
			return err
		}
		if err := rematchOrphans(tx, systemID, sink, out); err != nil {
			return err
		}
		return database.ComputeSystemCompletion(tx, systemID)
	})
	if err != nil {
		return nil, err
	}
	report.Imported = true
	return report, nil
}

// openDat reads a DAT file, transparently unwrapping zip, gzip and xz
// envelopes.
func openDat(path string) (*datfile.Datafile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DAT file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		r, err := zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open zipped DAT: %w", err)
		}
		defer r.Close()
		for _, member := range r.File {
			if strings.HasSuffix(strings.ToLower(member.Name), ".dat") {
				rc, err := member.Open()
				if err != nil {
					return nil, fmt.Errorf("failed to open zipped DAT: %w", err)
				}
				defer rc.Close()
				return datfile.ParseReader(rc)
			}
		}
		return nil, errors.New("no DAT file in archive")
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzipped DAT: %w", err)
		}
		defer gz.Close()
		return datfile.ParseReader(gz)
	case ".xz":
		x, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open xz DAT: %w", err)
		}
		return datfile.ParseReader(x)
	}
	return datfile.ParseReader(f)
}

func upsertSystem(q database.Queryer, dat *datfile.Datafile, name string, arcade bool, opts Options) (int64, error) {
	existing, err := database.FindSystemByName(q, name)
	if err != nil {
		return 0, err
	}

	in := database.SystemInput{
		Name:        name,
		Description: dat.Header.Description,
		Version:     dat.Header.Version,
		Arcade:      arcade,
		Merging:     database.MergingSplit,
	}
	if dat.Header.URL != "" {
		url := dat.Header.URL
		in.URL = &url
	}
	if opts.CustomName != "" {
		custom := opts.CustomName
		in.CustomName = &custom
	}
	if opts.CustomExtension != "" {
		ext := opts.CustomExtension
		in.CustomExtension = &ext
	}

	if existing == nil {
		return database.CreateSystem(q, in)
	}

	if !opts.Force && dat.Header.Version <= existing.Version {
		return 0, fmt.Errorf("%w: %s <= %s", ErrVersionTooOld, dat.Header.Version, existing.Version)
	}
	if in.CustomName == nil {
		in.CustomName = existing.CustomName
	}
	if in.CustomExtension == nil {
		in.CustomExtension = existing.CustomExtension
	}
	in.Merging = existing.Merging
	if err := database.UpdateSystem(q, existing.ID, in); err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// importDetector loads the clrmamepro header rule file referenced by
// the DAT, when any, and stores it as the system's header.
func importDetector(q database.Queryer, systemID int64, datPath string, cmp *datfile.ClrMamePro) error {
	if cmp == nil || cmp.Header == "" {
		return nil
	}
	detectorPath := filepath.Join(filepath.Dir(datPath), cmp.Header)
	detector, err := datfile.ParseDetector(detectorPath)
	if err != nil {
		return fmt.Errorf("failed to load header detector: %w", err)
	}
	if len(detector.Rules) == 0 {
		return nil
	}

	// the skip size is where the payload starts; the data tests are
	// the prefix patterns
	rule := detector.Rules[0]
	in := database.HeaderInput{
		SystemID:  systemID,
		Name:      detector.Name,
		Version:   detector.Version,
		Size:      rule.StartOffset,
		StartByte: 0,
	}
	if len(rule.Tests) > 0 {
		in.StartByte = rule.Tests[0].Offset
	}
	for _, test := range rule.Tests {
		in.Rules = append(in.Rules, database.HeaderRule{
			StartOffset: test.Offset,
			HexValue:    test.HexValue,
		})
	}
	_, err = database.CreateHeader(q, in)
	return err
}

// upsertGames writes parents before clones so clone rows can resolve
// their parent id.
func upsertGames(q database.Queryer, systemID int64, games []datfile.Game) error {
	var parents, clones []datfile.Game
	for _, game := range games {
		if game.CloneOf == "" {
			parents = append(parents, game)
		} else {
			clones = append(clones, game)
		}
	}

	for _, game := range parents {
		if err := upsertGame(q, systemID, game, nil); err != nil {
			return err
		}
	}
	for _, game := range clones {
		parent, err := database.FindGameByNameAndSystemID(q, game.CloneOf, systemID)
		if err != nil {
			return err
		}
		var parentID *int64
		if parent != nil {
			parentID = &parent.ID
		}
		if err := upsertGame(q, systemID, game, parentID); err != nil {
			return err
		}
	}
	return nil
}

func upsertGame(q database.Queryer, systemID int64, game datfile.Game, parentID *int64) error {
	in := database.GameInput{
		SystemID:    systemID,
		Name:        game.Name,
		Description: game.Description,
		Device:      game.IsDevice,
		Bios:        game.IsBIOS,
		Regions:     region.FromGameName(game.Name),
		ParentID:    parentID,
	}
	if game.Comment != "" {
		comment := game.Comment
		in.Comment = &comment
	}
	if game.ID != "" {
		id := game.ID
		in.ExternalID = &id
	}
	if game.RomOf != "" && game.RomOf != game.CloneOf {
		bios, err := database.FindGameByNameAndSystemID(q, game.RomOf, systemID)
		if err != nil {
			return err
		}
		if bios != nil {
			in.BiosID = &bios.ID
		}
	}

	existing, err := database.FindGameByNameAndSystemID(q, game.Name, systemID)
	if err != nil {
		return err
	}
	var gameID int64
	if existing == nil {
		gameID, err = database.CreateGame(q, in)
		if err != nil {
			return err
		}
	} else {
		gameID = existing.ID
		if gameChanged(existing, in) {
			if err := database.UpdateGame(q, gameID, in); err != nil {
				return err
			}
		}
	}

	return upsertRoms(q, gameID, game.ROMs)
}

func gameChanged(existing *database.Game, in database.GameInput) bool {
	return existing.Description != in.Description ||
		existing.Device != in.Device ||
		existing.Bios != in.Bios ||
		existing.Regions != in.Regions ||
		!equalID(existing.ParentID, in.ParentID) ||
		!equalID(existing.BiosID, in.BiosID) ||
		!equalStr(existing.Comment, in.Comment) ||
		!equalStr(existing.ExternalID, in.ExternalID)
}

func equalID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func upsertRoms(q database.Queryer, gameID int64, roms []datfile.ROM) error {
	existing, err := database.FindRomsByGameID(q, gameID)
	if err != nil {
		return err
	}
	byName := make(map[string]*database.Rom, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
	}

	keep := make([]string, 0, len(roms))
	for _, rom := range roms {
		keep = append(keep, rom.Name)
		in := database.RomInput{
			GameID: gameID,
			Name:   rom.Name,
			Size:   rom.Size,
		}
		if rom.CRC != "" {
			crc := rom.CRC
			in.Crc = &crc
		}
		if rom.MD5 != "" {
			md5 := rom.MD5
			in.Md5 = &md5
		}
		if rom.SHA1 != "" {
			sha1 := rom.SHA1
			in.Sha1 = &sha1
		}
		if rom.Status != datfile.DumpStatusUnspecified {
			status := string(rom.Status)
			in.Status = &status
		}

		old, ok := byName[rom.Name]
		if !ok {
			if _, err := database.CreateRom(q, in); err != nil {
				return err
			}
			continue
		}
		if romChanged(old, in) {
			if err := database.UpdateRom(q, old.ID, in); err != nil {
				return err
			}
		}
	}

	return database.DeleteRomsByGameIDExcludingNames(q, gameID, keep)
}

func romChanged(existing *database.Rom, in database.RomInput) bool {
	return existing.Size != in.Size ||
		!equalStr(existing.Crc, in.Crc) ||
		!equalStr(existing.Md5, in.Md5) ||
		!equalStr(existing.Sha1, in.Sha1) ||
		!equalStr(existing.Status, in.Status)
}

// reconcile deletes catalog games that vanished from the DAT.
func reconcile(q database.Queryer, systemID int64, games []datfile.Game) error {
	keep := make(map[string]bool, len(games))
	for _, game := range games {
		keep[game.Name] = true
	}
	existing, err := database.FindGamesBySystemID(q, systemID)
	if err != nil {
		return err
	}
	for i := range existing {
		if !keep[existing[i].Name] {
			if err := database.DeleteGameByID(q, existing[i].ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// rematchOrphans re-fingerprints romfiles left behind by deletions and
// tries to re-associate each with a rom still in the system. Files
// that no longer match anything are moved to Trash.
func rematchOrphans(q database.Queryer, systemID int64, sink progress.Sink, out io.Writer) error {
	system, err := database.FindSystemByID(q, systemID)
	if err != nil {
		return err
	}
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return err
	}
	algorithmName, err := config.GetString(q, config.HashAlgorithmKey)
	if err != nil {
		return err
	}
	algorithm, err := checksum.ParseAlgorithm(algorithmName)
	if err != nil {
		return err
	}
	header, err := database.FindHeaderBySystemID(q, systemID)
	if err != nil {
		return err
	}
	scheme, err := subfolderScheme(q)
	if err != nil {
		return err
	}

	orphans, err := database.FindOrphanRomfiles(q)
	if err != nil {
		return err
	}
	prefix := system.EffectiveName() + "/"
	for i := range orphans {
		orphan := &orphans[i]
		if !strings.HasPrefix(orphan.Path, prefix) || orphan.Type == database.RomfileTypePlaylist {
			continue
		}
		absPath := filepath.Join(romDirectory, filepath.FromSlash(orphan.Path))
		file, err := romfile.Detect(absPath)
		if err != nil {
			// the file itself is gone: drop the stale row
			if derr := database.DeleteRomfileByID(q, orphan.ID); derr != nil {
				return derr
			}
			continue
		}

		rom, err := rematchOne(q, file, systemID, algorithm, header, sink)
		if err != nil {
			return err
		}
		if rom == nil {
			fmt.Fprintf(out, "Trashing %s\n", orphan.Path)
			if err := trashRomfile(q, system, orphan, file, romDirectory); err != nil {
				return err
			}
			continue
		}

		game, err := database.FindGameByID(q, rom.GameID)
		if err != nil {
			return err
		}
		roms, err := database.FindRomsByGameID(q, rom.GameID)
		if err != nil {
			return err
		}
		grouped := system.Arcade || len(roms) > 1
		dest := layout.RomfilePath(romDirectory, system, game, rom.Name, grouped, scheme, layout.SubtreeAll)
		fmt.Fprintf(out, "Rematching %s to %s\n", orphan.Path, game.Name)
		if err := file.Rename(q, orphan, dest, romDirectory); err != nil {
			return err
		}
		if err := database.UpdateRomRomfile(q, rom.ID, &orphan.ID); err != nil {
			return err
		}
	}
	return nil
}

// rematchOne finds the unique unassigned rom matching the orphan's
// fingerprint, or nil.
func rematchOne(q database.Queryer, file *romfile.File, systemID int64, algorithm checksum.Algorithm, header *database.Header, sink progress.Sink) (*database.Rom, error) {
	fp, err := file.Hash(algorithm, header, sink)
	if err != nil {
		return nil, err
	}
	roms, err := database.FindRomsBySizeAndHashAndSystemID(q, fp.Size, string(algorithm), fp.Digest, systemID)
	if err != nil {
		return nil, err
	}
	for i := range roms {
		if roms[i].RomfileID == nil {
			return &roms[i], nil
		}
	}
	return nil, nil
}

func trashRomfile(q database.Queryer, system *database.System, orphan *database.Romfile, file *romfile.File, romDirectory string) error {
	dest := layout.TrashPath(romDirectory, system, file.Name())
	return file.Rename(q, orphan, dest, romDirectory)
}

func subfolderScheme(q database.Queryer) (layout.SubfolderScheme, error) {
	value, err := config.GetString(q, config.SubfolderSchemeKey)
	if err != nil {
		return layout.SubfolderNone, err
	}
	return layout.ParseScheme(value)
}
