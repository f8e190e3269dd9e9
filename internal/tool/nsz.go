package tool

import "context"

// CompressNsp compresses a Switch NSP package into an NSZ in outDir.
func CompressNsp(ctx context.Context, nspPath, outDir string) error {
	_, err := run(ctx, "nsz", "", "-C", "-o", outDir, nspPath)
	return err
}

// DecompressNsz decompresses an NSZ back into an NSP in outDir.
func DecompressNsz(ctx context.Context, nszPath, outDir string) error {
	_, err := run(ctx, "nsz", "", "-D", "-o", outDir, nszPath)
	return err
}
