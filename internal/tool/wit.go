package tool

import "context"

// CreateWbfs converts a Wii ISO into a WBFS container.
func CreateWbfs(ctx context.Context, isoPath, wbfsPath string) error {
	_, err := run(ctx, "wit", "", "copy", "--wbfs", isoPath, wbfsPath)
	return err
}

// ExtractWbfs converts a WBFS container back into a raw ISO.
func ExtractWbfs(ctx context.Context, wbfsPath, isoPath string) error {
	_, err := run(ctx, "wit", "", "copy", "--iso", wbfsPath, isoPath)
	return err
}
