package tool

import (
	"context"
	"strconv"
)

// RvzOptions carries the tunables of RVZ creation.
type RvzOptions struct {
	Algorithm string // zstd, bzip2, lzma, lzma2
	Level     int
	BlockSize int // KiB
	Scrub     bool
}

// CreateRvz converts a GameCube/Wii ISO into an RVZ image.
func CreateRvz(ctx context.Context, isoPath, rvzPath string, opts RvzOptions) error {
	args := []string{"convert", "-i", isoPath, "-o", rvzPath, "-f", "rvz",
		"-c", opts.Algorithm,
		"-l", strconv.Itoa(opts.Level),
		"-b", strconv.Itoa(opts.BlockSize * 1024)}
	if opts.Scrub {
		args = append(args, "-s")
	}
	_, err := run(ctx, "dolphin-tool", "", args...)
	return err
}

// ExtractRvz converts an RVZ image back into a raw ISO.
func ExtractRvz(ctx context.Context, rvzPath, isoPath string) error {
	_, err := run(ctx, "dolphin-tool", "", "convert", "-i", rvzPath, "-o", isoPath, "-f", "iso")
	return err
}
