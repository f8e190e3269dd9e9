package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/romfile"
	"github.com/romkeeper/romkeeper/internal/tool"
	"github.com/romkeeper/romkeeper/internal/util"
)

// errUnsupportedPair marks a format pair with no conversion path; the
// item is skipped, not failed.
var errUnsupportedPair = errors.New("no conversion path")

// output is one produced file plus the delta-CHD parent it references,
// when any.
type output struct {
	file      romfile.File
	chdParent *int64
}

// toOriginal recovers the game's payload in its original form inside
// the scratch directory.
func (c *Converter) toOriginal(ctx context.Context, q database.Queryer, item workItem, scratch *util.ScopedDir) ([]romfile.File, error) {
	switch item.kind {
	case romfile.KindCommon, romfile.KindCue, romfile.KindIso, romfile.KindNsp:
		// already original: stage copies so the pipeline never works
		// on the live files
		var files []romfile.File
		for _, row := range item.romfiles {
			src := c.absPath(&row)
			dst := scratch.Join(filepath.Base(src))
			if err := util.CopyFile(src, dst); err != nil {
				return nil, err
			}
			file, err := romfile.Detect(dst)
			if err != nil {
				return nil, err
			}
			files = append(files, *file)
		}
		return files, nil

	case romfile.KindArchive:
		row := item.romfiles[0]
		file, err := romfile.Detect(c.absPath(&row))
		if err != nil {
			return nil, err
		}
		return romfile.AsArchive(file).ToCommon(ctx, scratch.Path, c.TmpDirectory)

	case romfile.KindChd:
		return c.chdToOriginal(ctx, q, item, scratch)

	case romfile.KindCso, romfile.KindZso:
		row := item.romfiles[0]
		file, err := romfile.Detect(c.absPath(&row))
		if err != nil {
			return nil, err
		}
		iso, err := romfile.AsXso(file).ToIso(ctx, scratch.Path, c.TmpDirectory)
		if err != nil {
			return nil, err
		}
		return []romfile.File{iso.File}, nil

	case romfile.KindRvz:
		row := item.romfiles[0]
		file, err := romfile.Detect(c.absPath(&row))
		if err != nil {
			return nil, err
		}
		iso, err := romfile.AsRvz(file).ToIso(ctx, scratch.Path, c.TmpDirectory)
		if err != nil {
			return nil, err
		}
		return []romfile.File{iso.File}, nil

	case romfile.KindWbfs:
		row := item.romfiles[0]
		file, err := romfile.Detect(c.absPath(&row))
		if err != nil {
			return nil, err
		}
		iso, err := romfile.AsWbfs(file).ToIso(ctx, scratch.Path, c.TmpDirectory)
		if err != nil {
			return nil, err
		}
		return []romfile.File{iso.File}, nil

	case romfile.KindNsz:
		row := item.romfiles[0]
		file, err := romfile.Detect(c.absPath(&row))
		if err != nil {
			return nil, err
		}
		nsp, err := romfile.AsNsp(file).ToNsp(ctx, scratch.Path, c.TmpDirectory)
		if err != nil {
			return nil, err
		}
		return []romfile.File{nsp.File}, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedPair, item.kind)
}

// chdToOriginal extracts a CHD into its uncompressed form, driven by
// the image's disc family.
func (c *Converter) chdToOriginal(ctx context.Context, q database.Queryer, item workItem, scratch *util.ScopedDir) ([]romfile.File, error) {
	var chdRow *database.Romfile
	var cueRow *database.Romfile
	for i := range item.romfiles {
		if strings.EqualFold(filepath.Ext(item.romfiles[i].Path), ".chd") {
			chdRow = &item.romfiles[i]
		}
		if strings.EqualFold(filepath.Ext(item.romfiles[i].Path), ".cue") {
			cueRow = &item.romfiles[i]
		}
	}
	if chdRow == nil {
		return nil, fmt.Errorf("%s has no CHD romfile", item.game.Name)
	}
	file, err := romfile.Detect(c.absPath(chdRow))
	if err != nil {
		return nil, err
	}
	chd, err := romfile.AsChd(file)
	if err != nil {
		return nil, err
	}

	switch chd.Meta.Type {
	case romfile.ChdTypeCd:
		cueName, bins := c.cueLayout(item)
		splitbin := c.chdmanVersion != "" &&
			tool.CompareVersions(c.chdmanVersion, tool.MinSplitbinVersion) >= 0
		cueBin, err := chd.ToCueBin(ctx, scratch.Path, c.TmpDirectory, cueName, bins, splitbin)
		if err != nil {
			return nil, err
		}
		// when a sidecar cue is already imported it wins over the
		// generated sheet
		if cueRow != nil {
			if err := util.CopyFile(c.absPath(cueRow), cueBin.Cue.Path); err != nil {
				return nil, err
			}
		}
		files := []romfile.File{cueBin.Cue}
		files = append(files, cueBin.Bins...)
		return files, nil

	case romfile.ChdTypeDvd:
		isoName := replaceExt(filepath.Base(chdRow.Path), "iso")
		for _, rom := range item.roms {
			if strings.EqualFold(filepath.Ext(rom.Name), ".iso") {
				isoName = rom.Name
			}
		}
		iso, err := chd.ToIso(ctx, scratch.Path, c.TmpDirectory, isoName)
		if err != nil {
			return nil, err
		}
		return []romfile.File{iso.File}, nil

	default:
		outName := replaceExt(filepath.Base(chdRow.Path), "rdsk")
		if chd.Meta.Type == romfile.ChdTypeLd {
			outName = replaceExt(filepath.Base(chdRow.Path), "riff")
		}
		stream, err := chd.ToRdskRiff(ctx, scratch.Path, c.TmpDirectory, outName)
		if err != nil {
			return nil, err
		}
		return []romfile.File{stream.File}, nil
	}
}

// cueLayout derives the catalog cue name and bin specs of a CD game.
func (c *Converter) cueLayout(item workItem) (string, []romfile.BinSpec) {
	cueName := item.game.Name + ".cue"
	var bins []romfile.BinSpec
	for _, rom := range item.roms {
		switch strings.ToLower(filepath.Ext(rom.Name)) {
		case ".cue":
			cueName = rom.Name
		case ".bin":
			bins = append(bins, romfile.BinSpec{Name: rom.Name, Size: rom.Size})
		}
	}
	if len(bins) == 0 {
		bins = append(bins, romfile.BinSpec{Name: replaceExt(cueName, "bin")})
	}
	return cueName, bins
}

func replaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
}

// fromOriginal builds the requested format from the staged originals
// and finalizes the outputs into outDir.
func (c *Converter) fromOriginal(ctx context.Context, q database.Queryer, item workItem, originals []romfile.File, target Target, outDir string, scratch *util.ScopedDir) ([]output, error) {
	switch target {
	case TargetOriginal:
		var outputs []output
		for _, file := range originals {
			dest := filepath.Join(outDir, file.Name())
			if err := util.MoveFile(file.Path, dest); err != nil {
				return nil, err
			}
			file.Path = dest
			outputs = append(outputs, output{file: file})
		}
		return outputs, nil

	case TargetSevenZip, TargetZip:
		opts := c.sevenZipOpts
		ext := "7z"
		if target == TargetZip {
			opts = c.zipOpts
			ext = "zip"
		}
		names := make([]string, len(originals))
		for i, file := range originals {
			names[i] = file.Name()
		}
		archive, err := romfile.ToArchive(ctx, outDir, c.TmpDirectory,
			item.game.Name+"."+ext, filepath.Dir(originals[0].Path), names, opts)
		if err != nil {
			return nil, err
		}
		return []output{{file: archive.File}}, nil

	case TargetChd:
		return c.originalToChd(ctx, q, item, originals, outDir)

	case TargetCso, TargetZso:
		iso := findKind(originals, romfile.KindIso)
		if iso == nil {
			return nil, fmt.Errorf("%w: %s to %s", errUnsupportedPair, item.kind, target)
		}
		format := "cso1"
		if target == TargetZso {
			format = "zso"
		}
		xso, err := romfile.AsIso(iso).ToXso(ctx, outDir, c.TmpDirectory, format)
		if err != nil {
			return nil, err
		}
		return []output{{file: xso.File}}, nil

	case TargetIso:
		iso := findKind(originals, romfile.KindIso)
		if iso == nil {
			return nil, fmt.Errorf("%w: %s to ISO", errUnsupportedPair, item.kind)
		}
		dest := filepath.Join(outDir, iso.Name())
		if err := util.MoveFile(iso.Path, dest); err != nil {
			return nil, err
		}
		moved := *iso
		moved.Path = dest
		return []output{{file: moved}}, nil

	case TargetRvz:
		iso := findKind(originals, romfile.KindIso)
		if iso == nil {
			return nil, fmt.Errorf("%w: %s to RVZ", errUnsupportedPair, item.kind)
		}
		rvz, err := romfile.AsIso(iso).ToRvz(ctx, outDir, c.TmpDirectory, c.rvzOpts)
		if err != nil {
			return nil, err
		}
		return []output{{file: rvz.File}}, nil

	case TargetWbfs:
		iso := findKind(originals, romfile.KindIso)
		if iso == nil {
			return nil, fmt.Errorf("%w: %s to WBFS", errUnsupportedPair, item.kind)
		}
		wbfs, err := romfile.AsIso(iso).ToWbfs(ctx, outDir, c.TmpDirectory)
		if err != nil {
			return nil, err
		}
		return []output{{file: wbfs.File}}, nil

	case TargetNsz:
		nsp := findKind(originals, romfile.KindNsp)
		if nsp == nil {
			return nil, fmt.Errorf("%w: %s to NSZ", errUnsupportedPair, item.kind)
		}
		nsz, err := romfile.AsNsp(nsp).ToNsz(ctx, outDir, c.TmpDirectory)
		if err != nil {
			return nil, err
		}
		return []output{{file: nsz.File}}, nil
	}
	return nil, fmt.Errorf("%w: %s to %s", errUnsupportedPair, item.kind, target)
}

// originalToChd compresses cue+bin, iso or rdsk/riff originals into a
// CHD, delta-compressed against the clone parent's CHD when one is
// imported.
func (c *Converter) originalToChd(ctx context.Context, q database.Queryer, item workItem, originals []romfile.File, outDir string) ([]output, error) {
	parentPath, parentID, err := c.parentChd(q, &item.game)
	if err != nil {
		return nil, err
	}

	if cue := findKind(originals, romfile.KindCue); cue != nil {
		opts := c.chdCdOpts
		opts.ParentPath = parentPath
		cueBin, err := romfile.AsCueBin(cue)
		if err != nil {
			return nil, err
		}
		chd, err := cueBin.ToChd(ctx, outDir, c.TmpDirectory, opts)
		if err != nil {
			return nil, err
		}
		// the sheet stays alongside the image so the track layout
		// survives round trips
		cueDest := filepath.Join(outDir, cue.Name())
		if err := util.MoveFile(cue.Path, cueDest); err != nil {
			return nil, err
		}
		cueOut := *cue
		cueOut.Path = cueDest
		return []output{{file: cueOut}, {file: chd.File, chdParent: parentID}}, nil
	}

	if iso := findKind(originals, romfile.KindIso); iso != nil {
		opts := c.chdDvdOpts
		opts.ParentPath = parentPath
		chd, err := romfile.AsIso(iso).ToChd(ctx, outDir, c.TmpDirectory, opts)
		if err != nil {
			return nil, err
		}
		return []output{{file: chd.File, chdParent: parentID}}, nil
	}

	for i := range originals {
		if originals[i].Kind == romfile.KindRdsk || originals[i].Kind == romfile.KindRiff {
			chd, err := romfile.AsRdskRiff(&originals[i]).ToChd(ctx, outDir, c.TmpDirectory, c.chdDvdOpts)
			if err != nil {
				return nil, err
			}
			return []output{{file: chd.File}}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s to CHD", errUnsupportedPair, item.kind)
}

// parentChd resolves the clone parent's imported CHD, when any.
func (c *Converter) parentChd(q database.Queryer, game *database.Game) (string, *int64, error) {
	if game.ParentID == nil {
		return "", nil, nil
	}
	roms, err := database.FindRomsWithRomfileByGameIDs(q, []int64{*game.ParentID})
	if err != nil {
		return "", nil, err
	}
	for _, rom := range roms {
		row, err := database.FindRomfileByID(q, *rom.RomfileID)
		if err != nil {
			return "", nil, err
		}
		if strings.EqualFold(filepath.Ext(row.Path), ".chd") {
			id := row.ID
			return c.absPath(row), &id, nil
		}
	}
	return "", nil, nil
}

func findKind(files []romfile.File, kind romfile.Kind) *romfile.File {
	for i := range files {
		if files[i].Kind == kind {
			return &files[i]
		}
	}
	return nil
}

// replace swaps the database rows and removes the superseded physical
// files after a successful in-place conversion.
func (c *Converter) replace(q database.Queryer, item workItem, outputs []output) error {
	if len(outputs) == 0 {
		return nil
	}

	newRows := make(map[string]int64, len(outputs))
	for _, out := range outputs {
		rel, err := romfile.RelativePath(c.RomDirectory, out.file.Path)
		if err != nil {
			return err
		}
		row, err := database.FindRomfileByPath(q, rel)
		if err != nil {
			return err
		}
		var id int64
		if row == nil {
			id, err = database.CreateRomfile(q, rel, out.file.Size, database.RomfileTypeRegular, out.chdParent)
			if err != nil {
				return err
			}
		} else {
			id = row.ID
			if err := database.UpdateRomfile(q, id, rel, out.file.Size); err != nil {
				return err
			}
			if out.chdParent != nil {
				if err := database.UpdateRomfileParent(q, id, out.chdParent); err != nil {
					return err
				}
			}
		}
		newRows[strings.ToLower(filepath.Base(rel))] = id
	}

	// point every rom at its new file: exact name match first, then
	// the single non-cue output
	var defaultID int64
	for _, out := range outputs {
		if out.file.Kind != romfile.KindCue {
			rel, _ := romfile.RelativePath(c.RomDirectory, out.file.Path)
			defaultID = newRows[strings.ToLower(filepath.Base(rel))]
		}
	}
	for _, rom := range item.roms {
		id, ok := newRows[strings.ToLower(rom.Name)]
		if !ok {
			id, ok = newRows[strings.ToLower(replaceExt(rom.Name, strings.TrimPrefix(filepath.Ext(outputs[len(outputs)-1].file.Name()), ".")))]
		}
		if !ok {
			id = defaultID
		}
		if err := database.UpdateRomRomfile(q, rom.ID, &id); err != nil {
			return err
		}
	}

	// drop superseded rows and files
	kept := make(map[int64]bool, len(newRows))
	for _, id := range newRows {
		kept[id] = true
	}
	for _, row := range item.romfiles {
		if kept[row.ID] {
			continue
		}
		stale := romfile.File{Path: c.absPath(&row)}
		if err := stale.Delete(q, &row); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.Out, "Converted %s\n", item.game.Name)
	return nil
}
