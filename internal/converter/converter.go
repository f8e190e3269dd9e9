// Package converter transcodes romfiles between archival formats while
// preserving their catalog identity.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/romfile"
	"github.com/romkeeper/romkeeper/internal/tool"
	"github.com/romkeeper/romkeeper/internal/util"
)

// Target is the requested destination format.
type Target int

const (
	TargetOriginal Target = iota
	TargetSevenZip
	TargetZip
	TargetChd
	TargetCso
	TargetIso
	TargetNsz
	TargetRvz
	TargetWbfs
	TargetZso
)

// ParseTarget validates a format name.
func ParseTarget(s string) (Target, error) {
	switch strings.ToUpper(s) {
	case "ORIGINAL":
		return TargetOriginal, nil
	case "7Z":
		return TargetSevenZip, nil
	case "ZIP":
		return TargetZip, nil
	case "CHD":
		return TargetChd, nil
	case "CSO":
		return TargetCso, nil
	case "ISO":
		return TargetIso, nil
	case "NSZ":
		return TargetNsz, nil
	case "RVZ":
		return TargetRvz, nil
	case "WBFS":
		return TargetWbfs, nil
	case "ZSO":
		return TargetZso, nil
	}
	return TargetOriginal, fmt.Errorf("unknown format %q", s)
}

func (t Target) String() string {
	switch t {
	case TargetSevenZip:
		return "7Z"
	case TargetZip:
		return "ZIP"
	case TargetChd:
		return "CHD"
	case TargetCso:
		return "CSO"
	case TargetIso:
		return "ISO"
	case TargetNsz:
		return "NSZ"
	case TargetRvz:
		return "RVZ"
	case TargetWbfs:
		return "WBFS"
	case TargetZso:
		return "ZSO"
	}
	return "ORIGINAL"
}

// ErrLossyConversion is returned when a conversion cannot preserve the
// rom's catalog hash.
var ErrLossyConversion = errors.New("conversion cannot preserve catalog identity")

// Converter drives format conversions for one system.
type Converter struct {
	System *database.System
	Header *database.Header
	Scheme layout.SubfolderScheme

	RomDirectory string
	TmpDirectory string
	Out          io.Writer

	sevenZipOpts  tool.ArchiveOptions
	zipOpts       tool.ArchiveOptions
	chdCdOpts     tool.ChdOptions
	chdDvdOpts    tool.ChdOptions
	rvzOpts       tool.RvzOptions
	chdmanVersion string
}

// New loads the per-system conversion context from the settings table.
func New(ctx context.Context, q database.Queryer, system *database.System, out io.Writer) (*Converter, error) {
	c := &Converter{System: system, Out: out}

	var err error
	if c.RomDirectory, err = config.RomDirectory(q); err != nil {
		return nil, err
	}
	if c.TmpDirectory, err = config.TmpDirectory(q); err != nil {
		return nil, err
	}
	if c.Header, err = database.FindHeaderBySystemID(q, system.ID); err != nil {
		return nil, err
	}
	schemeName, err := config.GetString(q, config.SubfolderSchemeKey)
	if err != nil {
		return nil, err
	}
	if c.Scheme, err = layout.ParseScheme(schemeName); err != nil {
		return nil, err
	}

	if c.sevenZipOpts.CompressionLevel, err = config.GetInt(q, config.SevenzipCompressionLevelKey); err != nil {
		return nil, err
	}
	if c.sevenZipOpts.Solid, err = config.GetBool(q, config.SevenzipSolidCompressionKey); err != nil {
		return nil, err
	}
	if c.zipOpts.CompressionLevel, err = config.GetInt(q, config.ZipCompressionLevelKey); err != nil {
		return nil, err
	}
	if c.chdCdOpts.HunkSize, err = config.GetInt(q, config.ChdCdHunkSizeKey); err != nil {
		return nil, err
	}
	if c.chdCdOpts.Compression, err = config.GetList(q, config.ChdCdCompressionKey); err != nil {
		return nil, err
	}
	if c.chdDvdOpts.HunkSize, err = config.GetInt(q, config.ChdDvdHunkSizeKey); err != nil {
		return nil, err
	}
	if c.chdDvdOpts.Compression, err = config.GetList(q, config.ChdDvdCompressionKey); err != nil {
		return nil, err
	}
	if c.rvzOpts.Algorithm, err = config.GetString(q, config.RvzCompressionAlgorithmKey); err != nil {
		return nil, err
	}
	if c.rvzOpts.Level, err = config.GetInt(q, config.RvzCompressionLevelKey); err != nil {
		return nil, err
	}
	if c.rvzOpts.BlockSize, err = config.GetInt(q, config.RvzBlockSizeKey); err != nil {
		return nil, err
	}
	if c.rvzOpts.Scrub, err = config.GetBool(q, config.RvzScrubKey); err != nil {
		return nil, err
	}

	// the chdman version gates multi-track splitbin extraction; probe
	// it once here, tolerating a missing binary
	if version, err := tool.ChdmanVersion(ctx); err == nil {
		c.chdmanVersion = version
	}
	return c, nil
}

// workItem is one game with its unique romfiles, classified by the
// dominant on-disk format.
type workItem struct {
	game     database.Game
	roms     []database.Rom
	romfiles []database.Romfile
	kind     romfile.Kind
}

// partitionOrder fixes the processing order of format partitions.
var partitionOrder = []romfile.Kind{
	romfile.KindArchive,
	romfile.KindChd,
	romfile.KindCue,
	romfile.KindIso,
	romfile.KindCso,
	romfile.KindZso,
	romfile.KindRvz,
	romfile.KindNsz,
	romfile.KindNsp,
	romfile.KindWbfs,
	romfile.KindCommon,
}

// ConvertGames converts every romfile of the selected games to the
// target format. destDir empty converts in place; otherwise outputs
// are exported there and neither the originals nor the database are
// touched.
func (c *Converter) ConvertGames(ctx context.Context, q database.Queryer, games []database.Game, target Target, destDir string) error {
	if c.System.Arcade && target != TargetOriginal && target != TargetZip {
		return fmt.Errorf("arcade systems only support ORIGINAL and ZIP, not %s", target)
	}
	if c.Header != nil {
		switch target {
		case TargetOriginal, TargetZip, TargetSevenZip:
		default:
			return fmt.Errorf("%w: headered dumps cannot become %s", ErrLossyConversion, target)
		}
	}

	items, err := c.materialize(q, games)
	if err != nil {
		return err
	}

	for _, kind := range partitionOrder {
		for _, item := range items[kind] {
			if err := c.convertItem(ctx, q, item, target, destDir); err != nil {
				if errors.Is(err, tool.ErrMissing) || errors.Is(err, errUnsupportedPair) {
					fmt.Fprintf(c.Out, "Skipping %s: %v\n", item.game.Name, err)
					continue
				}
				if execErr := (*tool.ExecError)(nil); errors.As(err, &execErr) {
					fmt.Fprintf(c.Out, "Skipping %s: %v\n", item.game.Name, err)
					continue
				}
				return err
			}
		}
	}
	if destDir == "" {
		return database.ComputeSystemCompletion(q, c.System.ID)
	}
	return nil
}

// materialize loads the working set in two bulk queries and partitions
// it by current format.
func (c *Converter) materialize(q database.Queryer, games []database.Game) (map[romfile.Kind][]workItem, error) {
	gameIDs := make([]int64, len(games))
	byID := make(map[int64]database.Game, len(games))
	for i, game := range games {
		gameIDs[i] = game.ID
		byID[game.ID] = game
	}

	roms, err := database.FindRomsWithRomfileByGameIDs(q, gameIDs)
	if err != nil {
		return nil, err
	}
	romfileIDs := make([]int64, 0, len(roms))
	seen := make(map[int64]bool)
	romsByGame := make(map[int64][]database.Rom)
	for _, rom := range roms {
		romsByGame[rom.GameID] = append(romsByGame[rom.GameID], rom)
		if !seen[*rom.RomfileID] {
			seen[*rom.RomfileID] = true
			romfileIDs = append(romfileIDs, *rom.RomfileID)
		}
	}
	rows, err := database.FindRomfilesByIDs(q, romfileIDs)
	if err != nil {
		return nil, err
	}
	rowByID := make(map[int64]database.Romfile, len(rows))
	for _, row := range rows {
		rowByID[row.ID] = row
	}

	items := make(map[romfile.Kind][]workItem)
	gameOrder := make([]int64, 0, len(romsByGame))
	for gameID := range romsByGame {
		gameOrder = append(gameOrder, gameID)
	}
	sort.Slice(gameOrder, func(i, j int) bool { return gameOrder[i] < gameOrder[j] })

	for _, gameID := range gameOrder {
		item := workItem{game: byID[gameID], roms: romsByGame[gameID]}
		rfSeen := make(map[int64]bool)
		for _, rom := range item.roms {
			if rfSeen[*rom.RomfileID] {
				continue
			}
			rfSeen[*rom.RomfileID] = true
			item.romfiles = append(item.romfiles, rowByID[*rom.RomfileID])
		}
		item.kind = c.classify(item.romfiles)
		items[item.kind] = append(items[item.kind], item)
	}
	return items, nil
}

// classify picks the partition of a game from its romfiles' paths.
func (c *Converter) classify(rows []database.Romfile) romfile.Kind {
	rank := map[romfile.Kind]int{}
	for i, kind := range partitionOrder {
		rank[kind] = i
	}
	best := romfile.KindCommon
	for _, row := range rows {
		kind := kindByExtensionName(row.Path)
		if rank[kind] < rank[best] {
			best = kind
		}
	}
	return best
}

func kindByExtensionName(path string) romfile.Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".7z", ".zip":
		return romfile.KindArchive
	case ".chd":
		return romfile.KindChd
	case ".cue":
		return romfile.KindCue
	case ".iso":
		return romfile.KindIso
	case ".cso":
		return romfile.KindCso
	case ".zso":
		return romfile.KindZso
	case ".rvz":
		return romfile.KindRvz
	case ".nsz":
		return romfile.KindNsz
	case ".nsp":
		return romfile.KindNsp
	case ".wbfs":
		return romfile.KindWbfs
	}
	return romfile.KindCommon
}

func (c *Converter) absPath(row *database.Romfile) string {
	return filepath.Join(c.RomDirectory, filepath.FromSlash(row.Path))
}

// gameDirectory is where the game's files live in the canonical
// layout.
func (c *Converter) gameDirectory(game *database.Game, grouped bool) string {
	probe := layout.RomfilePath(c.RomDirectory, c.System, game, "probe", grouped, c.Scheme, layout.SubtreeAll)
	return filepath.Dir(probe)
}

// targetOfKind reports whether the item already is in the target
// format.
func targetOfKind(kind romfile.Kind, target Target) bool {
	switch target {
	case TargetSevenZip, TargetZip:
		return kind == romfile.KindArchive
	case TargetChd:
		return kind == romfile.KindChd
	case TargetCso:
		return kind == romfile.KindCso
	case TargetZso:
		return kind == romfile.KindZso
	case TargetIso:
		return kind == romfile.KindIso
	case TargetRvz:
		return kind == romfile.KindRvz
	case TargetNsz:
		return kind == romfile.KindNsz
	case TargetWbfs:
		return kind == romfile.KindWbfs
	case TargetOriginal:
		return kind == romfile.KindCommon || kind == romfile.KindCue ||
			kind == romfile.KindIso || kind == romfile.KindNsp
	}
	return false
}

// convertItem routes one game through the format-pair dispatch.
func (c *Converter) convertItem(ctx context.Context, q database.Queryer, item workItem, target Target, destDir string) error {
	if targetOfKind(item.kind, target) {
		// exact archive flavor still matters for 7Z vs ZIP
		if item.kind != romfile.KindArchive || c.archiveFlavorMatches(item, target) {
			if destDir == "" {
				return nil
			}
			return c.exportAsIs(ctx, q, item, destDir)
		}
	}

	// a CHD that parents other delta CHDs is never rewritten
	if item.kind == romfile.KindChd {
		isParent, err := c.isParentChd(q, item)
		if err != nil {
			return err
		}
		if isParent && !targetOfKind(item.kind, target) {
			fmt.Fprintf(c.Out, "Skipping %s: its CHD parents delta images\n", item.game.Name)
			return nil
		}
	}

	scratch, err := util.NewScopedDir(c.TmpDirectory, "convert-")
	if err != nil {
		return err
	}
	defer scratch.Release()

	// stage one: recover the original payload into the scratch dir
	originals, err := c.toOriginal(ctx, q, item, scratch)
	if err != nil {
		return err
	}

	// stage two: build the target from the originals
	outDir := destDir
	inPlace := destDir == ""
	if inPlace {
		grouped := c.System.Arcade || len(item.roms) > 1
		outDir = c.gameDirectory(&item.game, grouped)
	}
	outputs, err := c.fromOriginal(ctx, q, item, originals, target, outDir, scratch)
	if err != nil {
		return err
	}

	if !inPlace {
		return nil
	}
	return c.replace(q, item, outputs)
}

func (c *Converter) archiveFlavorMatches(item workItem, target Target) bool {
	want := ".7z"
	if target == TargetZip {
		want = ".zip"
	}
	for _, row := range item.romfiles {
		if !strings.EqualFold(filepath.Ext(row.Path), want) {
			return false
		}
	}
	return true
}

// exportAsIs copies the item's files into destDir, applying any
// attached patches to the exported copies.
func (c *Converter) exportAsIs(ctx context.Context, q database.Queryer, item workItem, destDir string) error {
	for _, row := range item.romfiles {
		src := c.absPath(&row)
		if err := util.CopyFile(src, filepath.Join(destDir, filepath.Base(src))); err != nil {
			return err
		}
	}
	for _, rom := range item.roms {
		if err := c.applyPatches(ctx, q, &rom, destDir); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.Out, "Exported %s\n", item.game.Name)
	return nil
}

// applyPatches rewrites an exported copy through the rom's patch
// chain, in index order.
func (c *Converter) applyPatches(ctx context.Context, q database.Queryer, rom *database.Rom, destDir string) error {
	patches, err := database.FindPatchesByRomID(q, rom.ID)
	if err != nil || len(patches) == 0 {
		return err
	}
	row, err := database.FindRomfileByID(q, *rom.RomfileID)
	if err != nil {
		return err
	}
	target := filepath.Join(destDir, filepath.Base(filepath.FromSlash(row.Path)))

	scratch, err := util.NewScopedDir(c.TmpDirectory, "patch-")
	if err != nil {
		return err
	}
	defer scratch.Release()

	systemDir := layout.SystemDirectory(c.RomDirectory, c.System)
	for _, patch := range patches {
		patchPath := filepath.Join(systemDir, patch.Name)
		patched := scratch.Join(patch.Name + ".out")
		var applyErr error
		if strings.EqualFold(filepath.Ext(patch.Name), ".xdelta") {
			applyErr = tool.ApplyXdelta(ctx, patchPath, target, patched)
		} else {
			applyErr = tool.ApplyFlips(ctx, patchPath, target, patched)
		}
		if applyErr != nil {
			return applyErr
		}
		if err := util.MoveFile(patched, target); err != nil {
			return err
		}
	}
	return nil
}

// isParentChd reports whether any of the item's romfiles parents a
// delta CHD.
func (c *Converter) isParentChd(q database.Queryer, item workItem) (bool, error) {
	for _, row := range item.romfiles {
		var count int64
		err := q.QueryRow(`SELECT COUNT(*) FROM romfiles WHERE parent_id = ?`, row.ID).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("failed to count delta children: %w", err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
