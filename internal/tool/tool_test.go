package tool

import "testing"

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.262", "0.262", 0},
		{"0.261", "0.262", -1},
		{"0.263", "0.262", 1},
		{"1.0", "0.999", 1},
		{"0.262", "0.262.1", -1},
		{"10.2", "9.9", 1},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestScrapeVersion(t *testing.T) {
	output := "chdman - MAME Compressed Hunks of Data (CHD) manager 0.264 (mame0264)"
	version, err := scrapeVersion(output)
	if err != nil {
		t.Fatal(err)
	}
	if version != "0.264" {
		t.Errorf("version = %q", version)
	}

	if _, err := scrapeVersion("no digits here"); err == nil {
		t.Error("expected error without a version")
	}
}

func TestExecErrorMessage(t *testing.T) {
	err := &ExecError{Tool: "chdman", Stderr: "Error: unable to open file\n"}
	want := "chdman failed: Error: unable to open file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestChdOptionsArgs(t *testing.T) {
	opts := ChdOptions{HunkSize: 2448, Compression: []string{"cdlz", "cdzl"}, ParentPath: "/tmp/parent.chd"}
	args := opts.args()
	want := []string{"-hs", "2448", "-c", "cdlz,cdzl", "--parent", "/tmp/parent.chd"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestListArchiveParsing(t *testing.T) {
	// 7z l -slt output shape
	output := `
7-Zip 23.01

Listing archive: game.zip

----------
Path = Game (USA).bin
Size = 262144
Packed Size = 120000
CRC = ABCD1234

Path = Game (USA).cue
Size = 88
Packed Size = 80
CRC = 00FF00FF
`
	members := parseArchiveListing(output)
	if len(members) != 2 {
		t.Fatalf("members = %+v", members)
	}
	if members[0].Path != "Game (USA).bin" || members[0].Size != 262144 || members[0].CRC != "abcd1234" {
		t.Errorf("member 0 = %+v", members[0])
	}
	if members[1].Path != "Game (USA).cue" || members[1].CRC != "00ff00ff" {
		t.Errorf("member 1 = %+v", members[1])
	}
}
