// Package importer identifies candidate romfiles against the catalog
// and relocates matches into the canonical directory layout.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/romkeeper/romkeeper/internal/checksum"
	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/progress"
	"github.com/romkeeper/romkeeper/internal/romfile"
	"github.com/romkeeper/romkeeper/internal/util"
)

// UnattendedMode controls how ambiguous decisions are resolved when no
// user is available.
type UnattendedMode int

const (
	AskFirstTime UnattendedMode = iota
	YesToAll
	NoToAll
)

// Prompter resolves ambiguous matches. The CLI provides an interactive
// implementation; unattended runs use the deterministic one.
type Prompter interface {
	// SelectRom picks among multiple catalog matches.
	SelectRom(candidate string, roms []database.Rom) (*database.Rom, error)
	// ConfirmReplace decides whether a duplicate replaces the
	// already-imported file.
	ConfirmReplace(candidate, existing string) (bool, error)
}

// DeterministicPrompter takes the first rom by ascending id and never
// replaces existing imports.
type DeterministicPrompter struct{}

func (DeterministicPrompter) SelectRom(_ string, roms []database.Rom) (*database.Rom, error) {
	return &roms[0], nil
}

func (DeterministicPrompter) ConfirmReplace(string, string) (bool, error) {
	return false, nil
}

// Options are the per-batch import switches.
type Options struct {
	Unattended     UnattendedMode
	TrashUnmatched bool
	KeepSource     bool // copy instead of move semantics
}

// Importer drives the per-candidate identification pipeline for one
// system.
type Importer struct {
	System    *database.System
	Header    *database.Header
	Algorithm checksum.Algorithm
	Scheme    layout.SubfolderScheme

	RomDirectory string
	TmpDirectory string

	Sink     progress.Sink
	Out      io.Writer
	Prompter Prompter
}

// New loads the per-system import context.
func New(q database.Queryer, system *database.System, sink progress.Sink, out io.Writer, prompter Prompter) (*Importer, error) {
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return nil, err
	}
	tmpDirectory, err := config.TmpDirectory(q)
	if err != nil {
		return nil, err
	}
	algorithmName, err := config.GetString(q, config.HashAlgorithmKey)
	if err != nil {
		return nil, err
	}
	algorithm, err := checksum.ParseAlgorithm(algorithmName)
	if err != nil {
		return nil, err
	}
	header, err := database.FindHeaderBySystemID(q, system.ID)
	if err != nil {
		return nil, err
	}
	schemeName, err := config.GetString(q, config.SubfolderSchemeKey)
	if err != nil {
		return nil, err
	}
	scheme, err := layout.ParseScheme(schemeName)
	if err != nil {
		return nil, err
	}

	return &Importer{
		System:       system,
		Header:       header,
		Algorithm:    algorithm,
		Scheme:       scheme,
		RomDirectory: romDirectory,
		TmpDirectory: tmpDirectory,
		Sink:         sink,
		Out:          out,
		Prompter:     prompter,
	}, nil
}

// ErrNoMatch is returned when a candidate matches nothing in the
// catalog.
var ErrNoMatch = errors.New("no matching rom in system")

// ErrDuplicate is returned when the matched rom already has a romfile.
type ErrDuplicate struct {
	Existing string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate of %s", e.Existing)
}

// ImportPath runs the pipeline for one candidate. Per-item failures
// are reported through the returned error; the caller decides whether
// to continue the batch.
func (imp *Importer) ImportPath(ctx context.Context, q database.Queryer, path string, opts Options) error {
	file, err := romfile.Detect(path)
	if err != nil {
		return err
	}

	switch file.Kind {
	case romfile.KindArchive:
		return imp.importArchive(ctx, q, romfile.AsArchive(file), opts)
	case romfile.KindChd:
		chd, err := romfile.AsChd(file)
		if err != nil {
			return err
		}
		return imp.importChd(ctx, q, chd, opts)
	case romfile.KindCue:
		cueBin, err := romfile.AsCueBin(file)
		if err != nil {
			return err
		}
		return imp.importCueBin(q, cueBin, opts)
	case romfile.KindGdi:
		gdi, err := romfile.AsGdi(file)
		if err != nil {
			return err
		}
		return imp.importGdi(q, gdi, opts)
	case romfile.KindPlaylist, romfile.KindPatch, romfile.KindIrd:
		return fmt.Errorf("%s files are handled by their own import command", file.Kind)
	default:
		return imp.importCommon(q, file, opts)
	}
}

// importCommon identifies a plain candidate by one (size, hash) pair.
func (imp *Importer) importCommon(q database.Queryer, file *romfile.File, opts Options) error {
	fp, err := file.Hash(imp.Algorithm, imp.Header, imp.Sink)
	if err != nil {
		return err
	}
	rom, err := imp.matchFingerprint(q, file.Name(), fp, opts)
	if err != nil {
		return imp.handleUnmatched(q, file, opts, err)
	}
	return imp.placeSingle(q, file, rom, rom.Name, opts)
}

// importCueBin identifies each bin independently plus the sheet itself;
// all tracks must resolve within one game.
func (imp *Importer) importCueBin(q database.Queryer, cueBin *romfile.CueBinFile, opts Options) error {
	assignments := make(map[int64]*romfile.File)
	var gameID int64

	cueFp, err := cueBin.Cue.Hash(imp.Algorithm, nil, imp.Sink)
	if err != nil {
		return err
	}
	cueRom, err := imp.matchFingerprint(q, cueBin.Cue.Name(), cueFp, opts)
	if err != nil {
		return imp.handleUnmatched(q, &cueBin.Cue, opts, err)
	}
	gameID = cueRom.GameID
	assignments[cueRom.ID] = &cueBin.Cue

	for i := range cueBin.Bins {
		bin := &cueBin.Bins[i]
		fp, err := bin.Hash(imp.Algorithm, nil, imp.Sink)
		if err != nil {
			return err
		}
		rom, err := imp.matchFingerprint(q, bin.Name(), fp, opts)
		if err != nil {
			return imp.handleUnmatched(q, bin, opts, err)
		}
		if rom.GameID != gameID {
			return fmt.Errorf("track %s matches a different game", bin.Name())
		}
		assignments[rom.ID] = bin
	}

	game, grouped, err := imp.gameContext(q, gameID)
	if err != nil {
		return err
	}
	for romID, file := range assignments {
		rom, err := database.FindRomByID(q, romID)
		if err != nil {
			return err
		}
		if err := imp.commit(q, file, []database.Rom{*rom}, game, rom.Name, grouped, opts); err != nil {
			return err
		}
	}
	return nil
}

// importGdi identifies a Dreamcast GDI sheet plus its track files; all
// tracks must resolve within one game.
func (imp *Importer) importGdi(q database.Queryer, gdi *romfile.GdiFile, opts Options) error {
	sheetFp, err := gdi.Gdi.Hash(imp.Algorithm, nil, imp.Sink)
	if err != nil {
		return err
	}
	sheetRom, err := imp.matchFingerprint(q, gdi.Gdi.Name(), sheetFp, opts)
	if err != nil {
		return imp.handleUnmatched(q, &gdi.Gdi, opts, err)
	}
	assignments := map[int64]*romfile.File{sheetRom.ID: &gdi.Gdi}

	for i := range gdi.Tracks {
		track := &gdi.Tracks[i]
		fp, err := track.Hash(imp.Algorithm, nil, imp.Sink)
		if err != nil {
			return err
		}
		rom, err := imp.matchFingerprint(q, track.Name(), fp, opts)
		if err != nil {
			return imp.handleUnmatched(q, track, opts, err)
		}
		if rom.GameID != sheetRom.GameID {
			return fmt.Errorf("track %s matches a different game", track.Name())
		}
		assignments[rom.ID] = track
	}

	game, grouped, err := imp.gameContext(q, sheetRom.GameID)
	if err != nil {
		return err
	}
	for romID, file := range assignments {
		rom, err := database.FindRomByID(q, romID)
		if err != nil {
			return err
		}
		if err := imp.commit(q, file, []database.Rom{*rom}, game, rom.Name, grouped, opts); err != nil {
			return err
		}
	}
	return nil
}

// importArchive matches every member; all members must resolve within
// one game, which then owns the archive as a single romfile.
func (imp *Importer) importArchive(ctx context.Context, q database.Queryer, archive *romfile.ArchiveFile, opts Options) error {
	fingerprints, err := archive.Fingerprints(imp.Algorithm, imp.Header, imp.Sink)
	if err != nil {
		return err
	}
	if len(fingerprints) == 0 {
		return fmt.Errorf("archive %s is empty", archive.Name())
	}

	var roms []database.Rom
	var gameID int64
	for _, fp := range fingerprints {
		rom, err := imp.matchFingerprint(q, fp.Name, fp, opts)
		if err != nil {
			return imp.handleUnmatched(q, &archive.File, opts, err)
		}
		if gameID == 0 {
			gameID = rom.GameID
		} else if rom.GameID != gameID {
			return fmt.Errorf("archive %s spans multiple games", archive.Name())
		}
		roms = append(roms, *rom)
	}

	game, grouped, err := imp.gameContext(q, gameID)
	if err != nil {
		return err
	}
	name := game.Name + "." + archive.Extension()
	return imp.commit(q, &archive.File, roms, game, name, grouped, opts)
}

// importChd identifies a CHD by the payload it decompresses to: the
// image is extracted into a scratch directory and the extracted files
// are fingerprinted.
func (imp *Importer) importChd(ctx context.Context, q database.Queryer, chd *romfile.ChdFile, opts Options) error {
	if chd.Meta.HasParent() {
		// delta chains are resolved against the already-imported
		// parent after matching
		fmt.Fprintf(imp.Out, "%s is a delta CHD, resolving parent after match\n", chd.Name())
	}

	scratch, err := util.NewScopedDir(imp.TmpDirectory, "chd-ident-")
	if err != nil {
		return err
	}
	defer scratch.Release()

	var payload []romfile.File
	switch chd.Meta.Type {
	case romfile.ChdTypeDvd:
		iso, err := chd.ToIso(ctx, scratch.Path, imp.TmpDirectory, strings.TrimSuffix(chd.Name(), ".chd")+".iso")
		if err != nil {
			return err
		}
		payload = []romfile.File{iso.File}
	case romfile.ChdTypeCd:
		cueName := strings.TrimSuffix(chd.Name(), ".chd") + ".cue"
		cueBin, err := chd.ToCueBin(ctx, scratch.Path, imp.TmpDirectory, cueName,
			[]romfile.BinSpec{{Name: strings.TrimSuffix(chd.Name(), ".chd") + ".bin"}}, false)
		if err != nil {
			return err
		}
		payload = append(payload, cueBin.Bins...)
	default:
		return fmt.Errorf("%s CHDs cannot be identified from a loose file", chd.Meta.Type)
	}

	var rom *database.Rom
	for i := range payload {
		fp, err := payload[i].Hash(imp.Algorithm, nil, imp.Sink)
		if err != nil {
			return err
		}
		rom, err = imp.matchFingerprint(q, chd.Name(), fp, opts)
		if err != nil {
			return imp.handleUnmatched(q, &chd.File, opts, err)
		}
	}

	name := strings.TrimSuffix(rom.Name, filepath.Ext(rom.Name)) + ".chd"
	if err := imp.placeSingle(q, &chd.File, rom, name, opts); err != nil {
		return err
	}
	if chd.Meta.HasParent() {
		return imp.resolveChdParent(q, chd, rom)
	}
	return nil
}

// resolveChdParent records the delta chain by pointing the imported
// CHD's romfile at the parent game's CHD romfile.
func (imp *Importer) resolveChdParent(q database.Queryer, chd *romfile.ChdFile, rom *database.Rom) error {
	game, err := database.FindGameByID(q, rom.GameID)
	if err != nil {
		return err
	}
	if game.ParentID == nil {
		return fmt.Errorf("delta CHD %s matched a game with no parent", chd.Name())
	}
	parentRoms, err := database.FindRomsWithRomfileByGameIDs(q, []int64{*game.ParentID})
	if err != nil {
		return err
	}
	for i := range parentRoms {
		romfileRow, err := database.FindRomfileByID(q, *parentRoms[i].RomfileID)
		if err != nil {
			return err
		}
		if strings.HasSuffix(romfileRow.Path, ".chd") {
			current, err := database.FindRomfileByPath(q, mustRelative(imp.RomDirectory, chd.Path))
			if err != nil {
				return err
			}
			if current == nil {
				return fmt.Errorf("romfile for %s vanished", chd.Name())
			}
			return database.UpdateRomfileParent(q, current.ID, &romfileRow.ID)
		}
	}
	return fmt.Errorf("parent CHD for %s is not imported", chd.Name())
}

// matchFingerprint looks a fingerprint up in the catalog scoped to the
// system, resolving multiple matches through the prompter.
func (imp *Importer) matchFingerprint(q database.Queryer, candidate string, fp romfile.Fingerprint, opts Options) (*database.Rom, error) {
	roms, err := database.FindRomsBySizeAndHashAndSystemID(q, fp.Size, string(fp.Algorithm), fp.Digest, imp.System.ID)
	if err != nil {
		return nil, err
	}
	switch len(roms) {
	case 0:
		return nil, ErrNoMatch
	case 1:
		return &roms[0], nil
	}
	if opts.Unattended != AskFirstTime {
		// deterministic choice: ascending rom id
		return &roms[0], nil
	}
	return imp.Prompter.SelectRom(candidate, roms)
}

// handleUnmatched routes an unidentified candidate to trash when
// configured, otherwise reports and skips it.
func (imp *Importer) handleUnmatched(q database.Queryer, file *romfile.File, opts Options, cause error) error {
	if !errors.Is(cause, ErrNoMatch) {
		return cause
	}
	if opts.TrashUnmatched {
		dest := layout.TrashPath(imp.RomDirectory, imp.System, file.Name())
		fmt.Fprintf(imp.Out, "Trashing %s\n", file.Name())
		return file.Rename(nil, nil, dest, imp.RomDirectory)
	}
	return fmt.Errorf("%s: %w", file.Name(), cause)
}

func (imp *Importer) gameContext(q database.Queryer, gameID int64) (*database.Game, bool, error) {
	game, err := database.FindGameByID(q, gameID)
	if err != nil {
		return nil, false, err
	}
	roms, err := database.FindRomsByGameID(q, gameID)
	if err != nil {
		return nil, false, err
	}
	grouped := imp.System.Arcade || len(roms) > 1
	return game, grouped, nil
}

func (imp *Importer) placeSingle(q database.Queryer, file *romfile.File, rom *database.Rom, name string, opts Options) error {
	game, grouped, err := imp.gameContext(q, rom.GameID)
	if err != nil {
		return err
	}
	return imp.commit(q, file, []database.Rom{*rom}, game, name, grouped, opts)
}

// commit verifies at-most-once assignment, writes the romfile row and
// relocates the physical file to its canonical path.
func (imp *Importer) commit(q database.Queryer, file *romfile.File, roms []database.Rom, game *database.Game, name string, grouped bool, opts Options) error {
	// duplicate detection: a rom that already has a different romfile
	for i := range roms {
		if roms[i].RomfileID == nil {
			continue
		}
		existing, err := database.FindRomfileByID(q, *roms[i].RomfileID)
		if err != nil {
			return err
		}
		replace, err := imp.confirmReplace(file.Name(), existing.Path, opts)
		if err != nil {
			return err
		}
		if !replace {
			return &ErrDuplicate{Existing: existing.Path}
		}
	}

	dest := layout.RomfilePath(imp.RomDirectory, imp.System, game, name, grouped, imp.Scheme, layout.SubtreeAll)
	if opts.KeepSource {
		if err := util.CopyFile(file.Path, dest); err != nil {
			return err
		}
		file.Path = dest
	} else {
		if err := util.MoveFile(file.Path, dest); err != nil {
			return err
		}
		file.Path = dest
	}

	rel := mustRelative(imp.RomDirectory, dest)
	row, err := database.FindRomfileByPath(q, rel)
	if err != nil {
		return err
	}
	var romfileID int64
	if row == nil {
		romfileID, err = database.CreateRomfile(q, rel, file.Size, database.RomfileTypeRegular, nil)
		if err != nil {
			return err
		}
	} else {
		romfileID = row.ID
		if err := database.UpdateRomfile(q, romfileID, rel, file.Size); err != nil {
			return err
		}
	}

	for i := range roms {
		if err := database.UpdateRomRomfile(q, roms[i].ID, &romfileID); err != nil {
			return err
		}
	}
	fmt.Fprintf(imp.Out, "Imported %s\n", rel)
	return database.ComputeSystemCompletion(q, imp.System.ID)
}

func (imp *Importer) confirmReplace(candidate, existing string, opts Options) (bool, error) {
	switch opts.Unattended {
	case YesToAll:
		return true, nil
	case NoToAll:
		return false, nil
	}
	return imp.Prompter.ConfirmReplace(candidate, existing)
}

func mustRelative(romDirectory, absPath string) string {
	rel, err := romfile.RelativePath(romDirectory, absPath)
	if err != nil {
		return filepath.Base(absPath)
	}
	return rel
}
