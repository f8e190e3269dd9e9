package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ArchiveMember is one entry of a 7z or zip archive as listed by the
// 7z CLI.
type ArchiveMember struct {
	Path string
	Size int64
	CRC  string
}

// ArchiveOptions carries the tunables of archive creation.
type ArchiveOptions struct {
	CompressionLevel int
	Solid            bool
}

// ListArchive enumerates an archive through `7z l -slt`, reading the
// Path/Size/CRC attribute triples of each member block.
func ListArchive(ctx context.Context, archivePath string) ([]ArchiveMember, error) {
	output, err := run(ctx, "7z", "", "l", "-slt", archivePath)
	if err != nil {
		return nil, err
	}
	return parseArchiveListing(output), nil
}

func parseArchiveListing(output string) []ArchiveMember {
	var members []ArchiveMember
	var member *ArchiveMember
	inEntries := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		// member blocks start after the ---------- separator
		if strings.HasPrefix(line, "----------") {
			inEntries = true
			continue
		}
		if !inEntries {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Path = "):
			if member != nil {
				members = append(members, *member)
			}
			member = &ArchiveMember{Path: strings.TrimPrefix(line, "Path = ")}
		case strings.HasPrefix(line, "Size = ") && member != nil:
			member.Size, _ = strconv.ParseInt(strings.TrimPrefix(line, "Size = "), 10, 64)
		case strings.HasPrefix(line, "CRC = ") && member != nil:
			member.CRC = strings.ToLower(strings.TrimPrefix(line, "CRC = "))
		}
	}
	if member != nil {
		members = append(members, *member)
	}
	return members
}

// AddToArchive adds files (paths relative to baseDir) to an archive,
// creating it when absent.
func AddToArchive(ctx context.Context, archivePath, baseDir string, names []string, opts ArchiveOptions) error {
	args := []string{"a", fmt.Sprintf("-mx=%d", opts.CompressionLevel)}
	if opts.Solid {
		args = append(args, "-ms=on")
	} else {
		args = append(args, "-ms=off")
	}
	args = append(args, archivePath)
	args = append(args, names...)
	_, err := run(ctx, "7z", baseDir, args...)
	return err
}

// ExtractFromArchive extracts the named members (all when empty) into
// outDir, preserving member paths.
func ExtractFromArchive(ctx context.Context, archivePath, outDir string, names []string) error {
	args := []string{"x", archivePath, "-o" + outDir, "-y"}
	args = append(args, names...)
	_, err := run(ctx, "7z", "", args...)
	return err
}

// RenameInArchive renames a member in place.
func RenameInArchive(ctx context.Context, archivePath, oldName, newName string) error {
	_, err := run(ctx, "7z", "", "rn", archivePath, oldName, newName)
	return err
}

// DeleteFromArchive removes the named members.
func DeleteFromArchive(ctx context.Context, archivePath string, names []string) error {
	args := append([]string{"d", archivePath}, names...)
	_, err := run(ctx, "7z", "", args...)
	return err
}
