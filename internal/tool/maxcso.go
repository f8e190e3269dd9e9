package tool

import "context"

// CreateXso compresses an ISO into a CSO or ZSO image. format is
// "cso1" or "zso".
func CreateXso(ctx context.Context, isoPath, outputPath, format string) error {
	_, err := run(ctx, "maxcso", "", "--format="+format, isoPath, "-o", outputPath)
	return err
}

// ExtractXso decompresses a CSO or ZSO image back into a raw ISO.
func ExtractXso(ctx context.Context, xsoPath, isoPath string) error {
	_, err := run(ctx, "maxcso", "", "--decompress", xsoPath, "-o", isoPath)
	return err
}
