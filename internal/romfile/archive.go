package romfile

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"

	"github.com/romkeeper/romkeeper/internal/checksum"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
	"github.com/romkeeper/romkeeper/internal/tool"
	"github.com/romkeeper/romkeeper/internal/util"
)

// Member is one archive entry with the size and CRC recorded in the
// archive's own metadata.
type Member struct {
	Path string
	Size int64
	CRC  string // lowercase hex, empty when the format carries none
}

// ArchiveFile is a 7z, zip or (read-only) rar archive.
type ArchiveFile struct {
	File
}

// AsArchive wraps a detected file as an archive.
func AsArchive(f *File) *ArchiveFile {
	return &ArchiveFile{File: *f}
}

// Members enumerates the archive natively, without spawning the 7z
// binary. Directory entries are skipped.
func (a *ArchiveFile) Members() ([]Member, error) {
	switch a.Extension() {
	case "7z":
		return a.sevenZipMembers()
	case "zip":
		return a.zipMembers()
	case "rar":
		return a.rarMembers()
	}
	return nil, fmt.Errorf("unsupported archive format %q", a.Extension())
}

func (a *ArchiveFile) sevenZipMembers() ([]Member, error) {
	r, err := sevenzip.OpenReader(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	var members []Member
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		members = append(members, Member{
			Path: f.Name,
			Size: int64(f.UncompressedSize),
			CRC:  fmt.Sprintf("%08x", f.CRC32),
		})
	}
	return members, nil
}

func (a *ArchiveFile) zipMembers() ([]Member, error) {
	r, err := zip.OpenReader(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer r.Close()

	var members []Member
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		members = append(members, Member{
			Path: f.Name,
			Size: int64(f.UncompressedSize64),
			CRC:  fmt.Sprintf("%08x", f.CRC32),
		})
	}
	return members, nil
}

func (a *ArchiveFile) rarMembers() ([]Member, error) {
	r, err := rardecode.OpenReader(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar archive: %w", err)
	}
	defer r.Close()

	var members []Member
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rar entry: %w", err)
		}
		if header.IsDir {
			continue
		}
		members = append(members, Member{Path: header.Name, Size: header.UnPackedSize})
	}
	return members, nil
}

// openMember opens one member for sequential reading.
func (a *ArchiveFile) openMember(name string) (io.ReadCloser, int64, error) {
	switch a.Extension() {
	case "7z":
		r, err := sevenzip.OpenReader(a.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open 7z archive: %w", err)
		}
		for _, f := range r.File {
			if f.Name == name {
				rc, err := f.Open()
				if err != nil {
					r.Close()
					return nil, 0, fmt.Errorf("failed to open member: %w", err)
				}
				return &memberReader{ReadCloser: rc, archive: r}, int64(f.UncompressedSize), nil
			}
		}
		r.Close()
	case "zip":
		r, err := zip.OpenReader(a.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to open zip archive: %w", err)
		}
		for _, f := range r.File {
			if f.Name == name {
				rc, err := f.Open()
				if err != nil {
					r.Close()
					return nil, 0, fmt.Errorf("failed to open member: %w", err)
				}
				return &memberReader{ReadCloser: rc, archive: r}, int64(f.UncompressedSize64), nil
			}
		}
		r.Close()
	}
	return nil, 0, fmt.Errorf("member %q not found in %s", name, a.Name())
}

// memberReader closes the owning archive along with the member stream.
type memberReader struct {
	io.ReadCloser
	archive io.Closer
}

func (m *memberReader) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// Fingerprints derives one fingerprint per member. The archive's own
// CRC is trusted only when the algorithm is crc and no header rule is
// in play; otherwise each member is decompressed and hashed.
func (a *ArchiveFile) Fingerprints(algorithm checksum.Algorithm, header *database.Header, sink progress.Sink) ([]Fingerprint, error) {
	members, err := a.Members()
	if err != nil {
		return nil, err
	}

	var fingerprints []Fingerprint
	for _, m := range members {
		if algorithm == checksum.Crc && header == nil && m.CRC != "" {
			fingerprints = append(fingerprints, Fingerprint{
				Name: m.Path, Size: m.Size, Digest: m.CRC, Algorithm: algorithm,
			})
			continue
		}
		fp, err := a.hashMember(m, algorithm, header, sink)
		if err != nil {
			return nil, err
		}
		fingerprints = append(fingerprints, fp)
	}
	return fingerprints, nil
}

func (a *ArchiveFile) hashMember(m Member, algorithm checksum.Algorithm, header *database.Header, sink progress.Sink) (Fingerprint, error) {
	r, size, err := a.openMember(m.Path)
	if err != nil {
		return Fingerprint{}, err
	}

	if header != nil && size > header.Size {
		prefix := make([]byte, header.Size)
		if _, err := io.ReadFull(r, prefix); err != nil {
			r.Close()
			return Fingerprint{}, fmt.Errorf("failed to read member header: %w", err)
		}
		if checksum.HeaderMatches(header, prefix) {
			size -= header.Size
		} else {
			// header absent: the prefix bytes are part of the payload
			r.Close()
			r, _, err = a.openMember(m.Path)
			if err != nil {
				return Fingerprint{}, err
			}
		}
	}

	digest, err := checksum.SumReader(r, size, m.Path, algorithm, sink)
	r.Close()
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Name: m.Path, Size: size, Digest: digest, Algorithm: algorithm}, nil
}

// Check verifies every expected rom against the archive's members by
// name-insensitive lookup and fingerprint comparison.
func (a *ArchiveFile) Check(roms []database.Rom, algorithm checksum.Algorithm, header *database.Header, sink progress.Sink) error {
	fingerprints, err := a.Fingerprints(algorithm, header, sink)
	if err != nil {
		return err
	}
	byName := make(map[string]Fingerprint, len(fingerprints))
	for _, fp := range fingerprints {
		byName[strings.ToLower(fp.Name)] = fp
	}
	for i := range roms {
		fp, ok := byName[strings.ToLower(roms[i].Name)]
		if !ok || !fp.MatchesRom(&roms[i]) {
			return fmt.Errorf("%w: %s", ErrMismatch, roms[i].Name)
		}
	}
	return nil
}

// ExtractMember decompresses one member into destDir natively and
// returns the extracted path.
func (a *ArchiveFile) ExtractMember(name, destDir string) (string, error) {
	r, _, err := a.openMember(name)
	if err != nil {
		return "", err
	}
	defer r.Close()

	dest := filepath.Join(destDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("failed to extract member: %w", err)
	}
	return dest, nil
}

// ExtractAll decompresses every member into destDir through the 7z
// binary and returns the member names.
func (a *ArchiveFile) ExtractAll(ctx context.Context, destDir string) ([]string, error) {
	members, err := a.Members()
	if err != nil {
		return nil, err
	}
	if err := tool.ExtractFromArchive(ctx, a.Path, destDir, nil); err != nil {
		return nil, err
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Path
	}
	return names, nil
}

// AddMembers adds files (relative to baseDir) to the archive through
// the 7z binary.
func (a *ArchiveFile) AddMembers(ctx context.Context, baseDir string, names []string, opts tool.ArchiveOptions) error {
	return tool.AddToArchive(ctx, a.Path, baseDir, names, opts)
}

// RenameMember renames one member in place.
func (a *ArchiveFile) RenameMember(ctx context.Context, oldName, newName string) error {
	return tool.RenameInArchive(ctx, a.Path, oldName, newName)
}

// DeleteMembers removes members from the archive.
func (a *ArchiveFile) DeleteMembers(ctx context.Context, names []string) error {
	return tool.DeleteFromArchive(ctx, a.Path, names)
}

// CopyMembersTo extracts the named members into a scratch directory
// and adds them to another archive, preserving member paths.
func (a *ArchiveFile) CopyMembersTo(ctx context.Context, dest *ArchiveFile, names []string, tmpParent string, opts tool.ArchiveOptions) error {
	scratch, err := util.NewScopedDir(tmpParent, "archive-copy-")
	if err != nil {
		return err
	}
	defer scratch.Release()

	if err := tool.ExtractFromArchive(ctx, a.Path, scratch.Path, names); err != nil {
		return err
	}
	return dest.AddMembers(ctx, scratch.Path, names, opts)
}
