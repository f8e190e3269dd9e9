package tool

import "context"

// ApplyFlips applies a BPS or IPS patch, writing the patched copy to
// outputPath.
func ApplyFlips(ctx context.Context, patchPath, inputPath, outputPath string) error {
	_, err := run(ctx, "flips", "", "--apply", patchPath, inputPath, outputPath)
	return err
}

// ApplyXdelta applies an Xdelta patch against the source file.
func ApplyXdelta(ctx context.Context, patchPath, inputPath, outputPath string) error {
	_, err := run(ctx, "xdelta3", "", "-d", "-s", inputPath, patchPath, outputPath)
	return err
}
