package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Minimum chdman versions for features the pipeline depends on.
const (
	// MinSplitbinVersion introduced multi-track bin splitting on
	// extractcd (-sb).
	MinSplitbinVersion = "0.262"
	// MinDreamcastVersion introduced GD-ROM aware createcd.
	MinDreamcastVersion = "0.264"
)

// ChdOptions carries the tunables of CHD creation.
type ChdOptions struct {
	HunkSize    int      // 0 keeps the chdman default
	Compression []string // codec identifiers, e.g. cdlz,cdzl,cdfl
	ParentPath  string   // parent CHD for delta compression
}

func (o ChdOptions) args() []string {
	var args []string
	if o.HunkSize > 0 {
		args = append(args, "-hs", strconv.Itoa(o.HunkSize))
	}
	if len(o.Compression) > 0 {
		args = append(args, "-c", strings.Join(o.Compression, ","))
	}
	if o.ParentPath != "" {
		args = append(args, "--parent", o.ParentPath)
	}
	return args
}

// ChdmanVersion scrapes the version number from chdman's help output.
func ChdmanVersion(ctx context.Context) (string, error) {
	output, err := run(ctx, "chdman", "", "--help")
	if err != nil {
		// chdman exits non-zero on --help; the banner still carries
		// the version
		if execErr, ok := err.(*ExecError); ok && execErr.Stderr != "" {
			output += execErr.Stderr
		} else if output == "" {
			return "", err
		}
	}
	version, err := scrapeVersion(output)
	if err != nil {
		return "", fmt.Errorf("failed to parse chdman version: %w", err)
	}
	return version, nil
}

// CreateCd compresses a CUE+BIN set into a CD CHD.
func CreateCd(ctx context.Context, cuePath, chdPath string, opts ChdOptions) error {
	args := append([]string{"createcd", "-i", cuePath, "-o", chdPath}, opts.args()...)
	_, err := run(ctx, "chdman", "", args...)
	return err
}

// ExtractCd extracts a CD CHD into a CUE sheet and one binary file.
func ExtractCd(ctx context.Context, chdPath, cuePath, binPath string) error {
	_, err := run(ctx, "chdman", "", "extractcd", "-i", chdPath, "-o", cuePath, "-ob", binPath)
	return err
}

// ExtractCdSplitbin extracts a CD CHD with one bin per track. Requires
// chdman >= MinSplitbinVersion.
func ExtractCdSplitbin(ctx context.Context, chdPath, cuePath string) error {
	_, err := run(ctx, "chdman", "", "extractcd", "-i", chdPath, "-o", cuePath, "-sb")
	return err
}

// CreateDvd compresses an ISO into a DVD CHD.
func CreateDvd(ctx context.Context, isoPath, chdPath string, opts ChdOptions) error {
	args := append([]string{"createdvd", "-i", isoPath, "-o", chdPath}, opts.args()...)
	_, err := run(ctx, "chdman", "", args...)
	return err
}

// ExtractDvd extracts a DVD CHD back into a raw ISO.
func ExtractDvd(ctx context.Context, chdPath, isoPath string) error {
	_, err := run(ctx, "chdman", "", "extractdvd", "-i", chdPath, "-o", isoPath)
	return err
}

// CreateHd compresses an RDSK stream into a hard-disk CHD.
func CreateHd(ctx context.Context, inputPath, chdPath string, opts ChdOptions) error {
	args := append([]string{"createhd", "-i", inputPath, "-o", chdPath}, opts.args()...)
	_, err := run(ctx, "chdman", "", args...)
	return err
}

// ExtractHd extracts a hard-disk CHD into an RDSK stream.
func ExtractHd(ctx context.Context, chdPath, outputPath string) error {
	_, err := run(ctx, "chdman", "", "extracthd", "-i", chdPath, "-o", outputPath)
	return err
}

// CreateLd compresses a RIFF stream into a laserdisc CHD.
func CreateLd(ctx context.Context, inputPath, chdPath string, opts ChdOptions) error {
	args := append([]string{"createld", "-i", inputPath, "-o", chdPath}, opts.args()...)
	_, err := run(ctx, "chdman", "", args...)
	return err
}

// ExtractLd extracts a laserdisc CHD into a RIFF stream.
func ExtractLd(ctx context.Context, chdPath, outputPath string) error {
	_, err := run(ctx, "chdman", "", "extractld", "-i", chdPath, "-o", outputPath)
	return err
}
