package romfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/romkeeper/romkeeper/internal/tool"
	"github.com/romkeeper/romkeeper/internal/util"
)

// BinSpec names one catalog track of a CUE+BIN set.
type BinSpec struct {
	Name string
	Size int64
}

// stat refreshes a File from disk after a tool produced it.
func stat(path string, kind Kind) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}
	return &File{Path: path, Size: info.Size(), Kind: kind}, nil
}

// finalize moves a tool output from the scratch directory into destDir
// atomically and returns the refreshed File.
func finalize(scratchPath, destDir string, kind Kind) (*File, error) {
	dest := filepath.Join(destDir, filepath.Base(scratchPath))
	if err := util.MoveFile(scratchPath, dest); err != nil {
		return nil, err
	}
	return stat(dest, kind)
}

func replaceExtension(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + ext
}

// ToChd compresses the CUE+BIN set into a CD CHD in destDir.
func (c *CueBinFile) ToChd(ctx context.Context, destDir, tmpParent string, opts tool.ChdOptions) (*ChdFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "chd-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	chdPath := scratch.Join(replaceExtension(c.Cue.Name(), "chd"))
	if err := tool.CreateCd(ctx, c.Cue.Path, chdPath, opts); err != nil {
		return nil, err
	}
	out, err := finalize(chdPath, destDir, KindChd)
	if err != nil {
		return nil, err
	}
	return AsChd(out)
}

// ToCueBin extracts a CD CHD into a CUE sheet plus the catalog's bin
// layout in destDir. Multi-track sets either use chdman splitbin (when
// supported) or are split from the single extracted bin by size.
func (c *ChdFile) ToCueBin(ctx context.Context, destDir, tmpParent, cueName string, bins []BinSpec, splitbin bool) (*CueBinFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "cuebin-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	cuePath := scratch.Join(cueName)
	if splitbin && len(bins) > 1 {
		if err := tool.ExtractCdSplitbin(ctx, c.Path, cuePath); err != nil {
			return nil, err
		}
	} else {
		binPath := scratch.Join(replaceExtension(cueName, "bin"))
		if err := tool.ExtractCd(ctx, c.Path, cuePath, binPath); err != nil {
			return nil, err
		}
		if len(bins) > 1 {
			if err := splitBin(binPath, scratch.Path, bins); err != nil {
				return nil, err
			}
			if err := os.Remove(binPath); err != nil {
				return nil, fmt.Errorf("failed to remove combined bin: %w", err)
			}
		} else if len(bins) == 1 && filepath.Base(binPath) != bins[0].Name {
			if err := os.Rename(binPath, scratch.Join(bins[0].Name)); err != nil {
				return nil, fmt.Errorf("failed to rename bin: %w", err)
			}
		}
	}

	// the chdman cue references its own bin naming; rewrite to the
	// catalog layout
	if err := writeCueSheet(cuePath, bins); err != nil {
		return nil, err
	}

	cueOut, err := finalize(cuePath, destDir, KindCue)
	if err != nil {
		return nil, err
	}
	for _, bin := range bins {
		if _, err := finalize(scratch.Join(bin.Name), destDir, KindBin); err != nil {
			return nil, err
		}
	}
	return AsCueBin(cueOut)
}

// splitBin cuts a combined extracted bin into the catalog's per-track
// files by size.
func splitBin(binPath, destDir string, bins []BinSpec) error {
	in, err := os.Open(binPath)
	if err != nil {
		return fmt.Errorf("failed to open combined bin: %w", err)
	}
	defer in.Close()

	for _, spec := range bins {
		out, err := os.Create(filepath.Join(destDir, spec.Name))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", spec.Name, err)
		}
		if _, err := io.CopyN(out, in, spec.Size); err != nil {
			out.Close()
			return fmt.Errorf("failed to split %s: %w", spec.Name, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", spec.Name, err)
		}
	}
	return nil
}

// writeCueSheet emits a minimal sheet matching the catalog bin layout.
// Data layout follows the standard single-index form chdman accepts.
func writeCueSheet(path string, bins []BinSpec) error {
	var b strings.Builder
	for i, bin := range bins {
		fmt.Fprintf(&b, "FILE \"%s\" BINARY\n", bin.Name)
		mode := "MODE1/2352"
		if i > 0 {
			mode = "AUDIO"
		}
		fmt.Fprintf(&b, "  TRACK %02d %s\n", i+1, mode)
		fmt.Fprintf(&b, "    INDEX 01 00:00:00\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write CUE sheet: %w", err)
	}
	return nil
}

// IsoFile is a raw disc image.
type IsoFile struct {
	File
}

// AsIso wraps a detected .iso file.
func AsIso(f *File) *IsoFile {
	return &IsoFile{File: *f}
}

// ToChd compresses the ISO into a DVD CHD in destDir.
func (i *IsoFile) ToChd(ctx context.Context, destDir, tmpParent string, opts tool.ChdOptions) (*ChdFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "chd-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	chdPath := scratch.Join(replaceExtension(i.Name(), "chd"))
	if err := tool.CreateDvd(ctx, i.Path, chdPath, opts); err != nil {
		return nil, err
	}
	out, err := finalize(chdPath, destDir, KindChd)
	if err != nil {
		return nil, err
	}
	return AsChd(out)
}

// ToIso extracts a DVD CHD back into a raw ISO in destDir.
func (c *ChdFile) ToIso(ctx context.Context, destDir, tmpParent, isoName string) (*IsoFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "iso-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	isoPath := scratch.Join(isoName)
	if err := tool.ExtractDvd(ctx, c.Path, isoPath); err != nil {
		return nil, err
	}
	out, err := finalize(isoPath, destDir, KindIso)
	if err != nil {
		return nil, err
	}
	return AsIso(out), nil
}

// XsoFile is a CSO or ZSO compressed disc image.
type XsoFile struct {
	File
}

// AsXso wraps a detected .cso/.zso file.
func AsXso(f *File) *XsoFile {
	return &XsoFile{File: *f}
}

// ToXso compresses the ISO into a CSO or ZSO ("cso1" / "zso" format)
// in destDir.
func (i *IsoFile) ToXso(ctx context.Context, destDir, tmpParent, format string) (*XsoFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "xso-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	ext := "cso"
	if format == "zso" {
		ext = "zso"
	}
	xsoPath := scratch.Join(replaceExtension(i.Name(), ext))
	if err := tool.CreateXso(ctx, i.Path, xsoPath, format); err != nil {
		return nil, err
	}
	kind := KindCso
	if format == "zso" {
		kind = KindZso
	}
	out, err := finalize(xsoPath, destDir, kind)
	if err != nil {
		return nil, err
	}
	return AsXso(out), nil
}

// ToIso decompresses the image back into a raw ISO in destDir.
func (x *XsoFile) ToIso(ctx context.Context, destDir, tmpParent string) (*IsoFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "iso-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	isoPath := scratch.Join(replaceExtension(x.Name(), "iso"))
	if err := tool.ExtractXso(ctx, x.Path, isoPath); err != nil {
		return nil, err
	}
	out, err := finalize(isoPath, destDir, KindIso)
	if err != nil {
		return nil, err
	}
	return AsIso(out), nil
}

// RvzFile is a Dolphin-compressed GameCube/Wii image.
type RvzFile struct {
	File
}

// AsRvz wraps a detected .rvz file.
func AsRvz(f *File) *RvzFile {
	return &RvzFile{File: *f}
}

// ToRvz compresses the ISO into an RVZ image in destDir.
func (i *IsoFile) ToRvz(ctx context.Context, destDir, tmpParent string, opts tool.RvzOptions) (*RvzFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "rvz-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	rvzPath := scratch.Join(replaceExtension(i.Name(), "rvz"))
	if err := tool.CreateRvz(ctx, i.Path, rvzPath, opts); err != nil {
		return nil, err
	}
	out, err := finalize(rvzPath, destDir, KindRvz)
	if err != nil {
		return nil, err
	}
	return AsRvz(out), nil
}

// ToIso decompresses the RVZ back into a raw ISO in destDir.
func (r *RvzFile) ToIso(ctx context.Context, destDir, tmpParent string) (*IsoFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "iso-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	isoPath := scratch.Join(replaceExtension(r.Name(), "iso"))
	if err := tool.ExtractRvz(ctx, r.Path, isoPath); err != nil {
		return nil, err
	}
	out, err := finalize(isoPath, destDir, KindIso)
	if err != nil {
		return nil, err
	}
	return AsIso(out), nil
}

// WbfsFile is a Wii backup container.
type WbfsFile struct {
	File
}

// AsWbfs wraps a detected .wbfs file.
func AsWbfs(f *File) *WbfsFile {
	return &WbfsFile{File: *f}
}

// ToWbfs converts the ISO into a WBFS container in destDir.
func (i *IsoFile) ToWbfs(ctx context.Context, destDir, tmpParent string) (*WbfsFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "wbfs-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	wbfsPath := scratch.Join(replaceExtension(i.Name(), "wbfs"))
	if err := tool.CreateWbfs(ctx, i.Path, wbfsPath); err != nil {
		return nil, err
	}
	out, err := finalize(wbfsPath, destDir, KindWbfs)
	if err != nil {
		return nil, err
	}
	return AsWbfs(out), nil
}

// ToIso converts the WBFS container back into a raw ISO in destDir.
func (w *WbfsFile) ToIso(ctx context.Context, destDir, tmpParent string) (*IsoFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "iso-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	isoPath := scratch.Join(replaceExtension(w.Name(), "iso"))
	if err := tool.ExtractWbfs(ctx, w.Path, isoPath); err != nil {
		return nil, err
	}
	out, err := finalize(isoPath, destDir, KindIso)
	if err != nil {
		return nil, err
	}
	return AsIso(out), nil
}

// NspFile is a Switch package, compressed (.nsz) or not (.nsp).
type NspFile struct {
	File
}

// AsNsp wraps a detected .nsp/.nsz file.
func AsNsp(f *File) *NspFile {
	return &NspFile{File: *f}
}

// ToNsz compresses the NSP into an NSZ in destDir.
func (n *NspFile) ToNsz(ctx context.Context, destDir, tmpParent string) (*NspFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "nsz-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	if err := tool.CompressNsp(ctx, n.Path, scratch.Path); err != nil {
		return nil, err
	}
	out, err := finalize(scratch.Join(replaceExtension(n.Name(), "nsz")), destDir, KindNsz)
	if err != nil {
		return nil, err
	}
	return AsNsp(out), nil
}

// ToNsp decompresses the NSZ back into an NSP in destDir.
func (n *NspFile) ToNsp(ctx context.Context, destDir, tmpParent string) (*NspFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "nsp-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	if err := tool.DecompressNsz(ctx, n.Path, scratch.Path); err != nil {
		return nil, err
	}
	out, err := finalize(scratch.Join(replaceExtension(n.Name(), "nsp")), destDir, KindNsp)
	if err != nil {
		return nil, err
	}
	return AsNsp(out), nil
}

// RdskRiffFile is a raw MAME hard-disk (RDSK) or laserdisc (RIFF)
// stream, the uncompressed form of an Hd/Ld CHD.
type RdskRiffFile struct {
	File
}

// AsRdskRiff wraps a detected RDSK or RIFF stream.
func AsRdskRiff(f *File) *RdskRiffFile {
	return &RdskRiffFile{File: *f}
}

// ToChd compresses the stream into a hard-disk or laserdisc CHD.
func (r *RdskRiffFile) ToChd(ctx context.Context, destDir, tmpParent string, opts tool.ChdOptions) (*ChdFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "chd-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	chdPath := scratch.Join(replaceExtension(r.Name(), "chd"))
	var toolErr error
	if r.Kind == KindRiff {
		toolErr = tool.CreateLd(ctx, r.Path, chdPath, opts)
	} else {
		toolErr = tool.CreateHd(ctx, r.Path, chdPath, opts)
	}
	if toolErr != nil {
		return nil, toolErr
	}
	out, err := finalize(chdPath, destDir, KindChd)
	if err != nil {
		return nil, err
	}
	return AsChd(out)
}

// ToRdskRiff extracts an Hd/Ld CHD back into its raw stream form.
func (c *ChdFile) ToRdskRiff(ctx context.Context, destDir, tmpParent, outName string) (*RdskRiffFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "stream-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	outPath := scratch.Join(outName)
	kind := KindRdsk
	var toolErr error
	if c.Meta.Type == ChdTypeLd {
		kind = KindRiff
		toolErr = tool.ExtractLd(ctx, c.Path, outPath)
	} else {
		toolErr = tool.ExtractHd(ctx, c.Path, outPath)
	}
	if toolErr != nil {
		return nil, toolErr
	}
	out, err := finalize(outPath, destDir, kind)
	if err != nil {
		return nil, err
	}
	return AsRdskRiff(out), nil
}

// ToArchive packs loose files (paths relative to baseDir) into a new
// 7z or zip archive in destDir.
func ToArchive(ctx context.Context, destDir, tmpParent, archiveName, baseDir string, names []string, opts tool.ArchiveOptions) (*ArchiveFile, error) {
	scratch, err := util.NewScopedDir(tmpParent, "archive-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	archivePath := scratch.Join(archiveName)
	if err := tool.AddToArchive(ctx, archivePath, baseDir, names, opts); err != nil {
		return nil, err
	}
	out, err := finalize(archivePath, destDir, KindArchive)
	if err != nil {
		return nil, err
	}
	return AsArchive(out), nil
}

// ToCommon extracts every member into destDir and returns the
// extracted files in member order.
func (a *ArchiveFile) ToCommon(ctx context.Context, destDir, tmpParent string) ([]File, error) {
	scratch, err := util.NewScopedDir(tmpParent, "extract-")
	if err != nil {
		return nil, err
	}
	defer scratch.Release()

	names, err := a.ExtractAll(ctx, scratch.Path)
	if err != nil {
		return nil, err
	}
	var files []File
	for _, name := range names {
		out, err := finalize(scratch.Join(filepath.FromSlash(name)), destDir, KindCommon)
		if err != nil {
			return nil, err
		}
		files = append(files, *out)
	}
	return files, nil
}
