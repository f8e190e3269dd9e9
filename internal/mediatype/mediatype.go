// Package mediatype classifies candidate files by magic bytes,
// extending the shared MIME database with the disc-image, patch and
// descriptor formats the catalog deals in.
package mediatype

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// MIME types registered by this package.
const (
	Bps    = "application/x-bps"
	Chd    = "application/x-chd"
	Cso    = "application/x-cso"
	Ips    = "application/x-ips"
	Ird    = "application/x-ird"
	Rdsk   = "application/x-rdsk"
	Riff   = "application/x-riff"
	Rvz    = "application/x-rvz"
	Xdelta = "application/x-xdelta"
	Zso    = "application/x-zso"

	SevenZip = "application/x-7z-compressed"
	Zip      = "application/zip"
	Rar      = "application/x-rar-compressed"
	Gzip     = "application/gzip"
	Xz       = "application/x-xz"
)

var registerOnce sync.Once

func prefixMatcher(magic []byte) func([]byte, uint32) bool {
	return func(raw []byte, _ uint32) bool {
		return bytes.HasPrefix(raw, magic)
	}
}

func register() {
	root := mimetype.Lookup("application/octet-stream")
	root.Extend(prefixMatcher([]byte("BPS1")), Bps, ".bps")
	root.Extend(prefixMatcher([]byte("MComprHD")), Chd, ".chd")
	root.Extend(prefixMatcher([]byte("CISO")), Cso, ".cso")
	root.Extend(prefixMatcher([]byte("PATCH")), Ips, ".ips")
	root.Extend(prefixMatcher([]byte("3IRD")), Ird, ".ird")
	root.Extend(prefixMatcher([]byte("RDSK")), Rdsk, ".rdsk")
	root.Extend(prefixMatcher([]byte("RIFF")), Riff, ".riff")
	root.Extend(prefixMatcher([]byte{0x52, 0x56, 0x5A, 0x01}), Rvz, ".rvz")
	root.Extend(prefixMatcher([]byte{0xD6, 0xC3, 0xC4}), Xdelta, ".xdelta")
	root.Extend(prefixMatcher([]byte("ZISO")), Zso, ".zso")
}

// Detect infers the MIME type of the file at path.
func Detect(path string) (*mimetype.MIME, error) {
	registerOnce.Do(register)
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to infer media type: %w", err)
	}
	return m, nil
}

// DetectBytes infers the MIME type of an in-memory prefix.
func DetectBytes(raw []byte) *mimetype.MIME {
	registerOnce.Do(register)
	return mimetype.Detect(raw)
}
