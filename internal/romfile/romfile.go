// Package romfile is the typed abstraction over every on-disk format
// the library manages: plain files, archives, CUE+BIN sets, CHD images
// and the various domain-specific disc compressions. Each variant
// carries the subset of check/hash/convert/rename/delete operations
// that makes sense for it.
package romfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/mediatype"
)

// Kind is the detected format of a candidate file.
type Kind int

const (
	KindCommon Kind = iota
	KindArchive
	KindCue
	KindBin
	KindChd
	KindCso
	KindZso
	KindRvz
	KindNsp
	KindNsz
	KindIso
	KindRdsk
	KindRiff
	KindWbfs
	KindPlaylist
	KindPatch
	KindGdi
	KindIrd
)

func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindCue:
		return "cue"
	case KindBin:
		return "bin"
	case KindChd:
		return "chd"
	case KindCso:
		return "cso"
	case KindZso:
		return "zso"
	case KindRvz:
		return "rvz"
	case KindNsp:
		return "nsp"
	case KindNsz:
		return "nsz"
	case KindIso:
		return "iso"
	case KindRdsk:
		return "rdsk"
	case KindRiff:
		return "riff"
	case KindWbfs:
		return "wbfs"
	case KindPlaylist:
		return "playlist"
	case KindPatch:
		return "patch"
	case KindGdi:
		return "gdi"
	case KindIrd:
		return "ird"
	}
	return "common"
}

// File is one physical file on disk; Path is absolute.
type File struct {
	Path string
	Size int64
	Kind Kind
}

// Name returns the base name of the file.
func (f *File) Name() string {
	return filepath.Base(f.Path)
}

// Extension returns the lowercase extension without the dot.
func (f *File) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Path)), ".")
}

// kindsByExtension resolves the unambiguous extensions.
var kindsByExtension = map[string]Kind{
	"7z":   KindArchive,
	"zip":  KindArchive,
	"rar":  KindArchive,
	"cue":  KindCue,
	"gdi":  KindGdi,
	"m3u":  KindPlaylist,
	"chd":  KindChd,
	"nsp":  KindNsp,
	"nsz":  KindNsz,
	"wbfs": KindWbfs,
	"iso":  KindIso,
}

// kindsByMediaType resolves the magic-byte formats.
var kindsByMediaType = map[string]Kind{
	mediatype.Chd:      KindChd,
	mediatype.Cso:      KindCso,
	mediatype.Zso:      KindZso,
	mediatype.Rvz:      KindRvz,
	mediatype.Rdsk:     KindRdsk,
	mediatype.Riff:     KindRiff,
	mediatype.Bps:      KindPatch,
	mediatype.Ips:      KindPatch,
	mediatype.Xdelta:   KindPatch,
	mediatype.Ird:      KindIrd,
	mediatype.SevenZip: KindArchive,
	mediatype.Zip:      KindArchive,
	mediatype.Rar:      KindArchive,
}

// Detect classifies the file at path by extension first, magic bytes
// second.
func Detect(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	file := &File{Path: abs, Size: info.Size(), Kind: KindCommon}

	if kind, ok := kindsByExtension[file.Extension()]; ok {
		file.Kind = kind
		return file, nil
	}

	m, err := mediatype.Detect(abs)
	if err != nil {
		return nil, err
	}
	for mime, kind := range kindsByMediaType {
		if m.Is(mime) {
			file.Kind = kind
			break
		}
	}
	return file, nil
}

// Rename moves the file to absPath and, when a database row is given,
// records its new relative path.
func (f *File) Rename(q database.Queryer, row *database.Romfile, absPath, romDirectory string) error {
	if err := moveFile(f.Path, absPath); err != nil {
		return err
	}
	f.Path = absPath
	if q != nil && row != nil {
		rel, err := RelativePath(romDirectory, absPath)
		if err != nil {
			return err
		}
		if err := database.UpdateRomfile(q, row.ID, rel, f.Size); err != nil {
			return err
		}
		row.Path = rel
	}
	return nil
}

// Delete removes the physical file and, when a database row is given,
// its romfile record.
func (f *File) Delete(q database.Queryer, row *database.Romfile) error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	if q != nil && row != nil {
		return database.DeleteRomfileByID(q, row.ID)
	}
	return nil
}

// RelativePath converts an absolute path under the rom directory into
// the slash-separated relative form stored in the database.
func RelativePath(romDirectory, absPath string) (string, error) {
	rel, err := filepath.Rel(romDirectory, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to relativize path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}
