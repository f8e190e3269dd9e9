package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/progress"
)

func TestSum(t *testing.T) {
	tests := []struct {
		algorithm Algorithm
		want      string
	}{
		{Crc, "352441c2"},
		{Md5, "900150983cd24fb0d6963f7d28e17f72"},
		{Sha1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
	}
	for _, tt := range tests {
		got, err := Sum(bytes.NewReader([]byte("abc")), 3, tt.algorithm, progress.Nop{})
		if err != nil {
			t.Fatalf("Sum(%s): %v", tt.algorithm, err)
		}
		if got != tt.want {
			t.Errorf("Sum(%s) = %s, want %s", tt.algorithm, got, tt.want)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	if _, err := ParseAlgorithm("sha256"); err == nil {
		t.Error("expected error for sha256")
	}
	if alg, err := ParseAlgorithm("CRC"); err != nil || alg != Crc {
		t.Errorf("ParseAlgorithm(CRC) = %v, %v", alg, err)
	}
}

func nesHeader() *database.Header {
	return &database.Header{
		Size: 16,
		Rules: []database.HeaderRule{
			{StartOffset: 0, HexValue: "4e4553"},
		},
	}
}

func TestHeaderMatches(t *testing.T) {
	header := nesHeader()
	if !HeaderMatches(header, []byte("NES\x1a0123456789ab")) {
		t.Error("expected NES prefix to match")
	}
	if HeaderMatches(header, []byte("SEN\x1a0123456789ab")) {
		t.Error("did not expect SEN prefix to match")
	}
}

func TestSumFileStripsHeader(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 256)
	headered := append([]byte("NES\x1a"), bytes.Repeat([]byte{0x00}, 12)...)
	headered = append(headered, payload...)
	if len(headered) != 272 {
		t.Fatalf("fixture is %d bytes", len(headered))
	}

	path := filepath.Join(t.TempDir(), "game.nes")
	if err := os.WriteFile(path, headered, 0o644); err != nil {
		t.Fatal(err)
	}

	size, digest, err := SumFile(path, Crc, nesHeader(), progress.Nop{})
	if err != nil {
		t.Fatal(err)
	}
	if size != 256 {
		t.Errorf("size = %d, want 256", size)
	}

	wantDigest, err := Sum(bytes.NewReader(payload), 256, Crc, progress.Nop{})
	if err != nil {
		t.Fatal(err)
	}
	if digest != wantDigest {
		t.Errorf("digest = %s, want %s", digest, wantDigest)
	}
}

func TestSumFileWithoutHeaderMatch(t *testing.T) {
	data := bytes.Repeat([]byte{0xCD}, 64)
	path := filepath.Join(t.TempDir(), "game.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	// rules do not match: the whole file is hashed
	size, digest, err := SumFile(path, Crc, nesHeader(), progress.Nop{})
	if err != nil {
		t.Fatal(err)
	}
	if size != 64 {
		t.Errorf("size = %d, want 64", size)
	}
	wantDigest, _ := Sum(bytes.NewReader(data), 64, Crc, progress.Nop{})
	if digest != wantDigest {
		t.Errorf("digest = %s, want %s", digest, wantDigest)
	}
}
