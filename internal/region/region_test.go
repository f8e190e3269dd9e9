package region

import (
	"reflect"
	"testing"
)

func TestFromGameName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Game Name (USA)", "US"},
		{"Game Name (Japan)", "JP"},
		{"Game Name (USA, Europe)", "US-EU"},
		{"Game Name (World)", "US-JP-EU"},
		{"Game Name (France) (Rev 1)", "FR"},
		{"Game Name (En,Fr,De)", ""},
		{"Game Name", ""},
	}
	for _, tt := range tests {
		if got := FromGameName(tt.name); got != tt.want {
			t.Errorf("FromGameName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseName(t *testing.T) {
	info := ParseName("Game Name (USA) (En,Fr) (Rev 2) (Disc 1) (Beta 3)")
	if !reflect.DeepEqual(info.Regions, []string{"US"}) {
		t.Errorf("Regions = %v", info.Regions)
	}
	if !reflect.DeepEqual(info.Languages, []string{"En", "Fr"}) {
		t.Errorf("Languages = %v", info.Languages)
	}
	if info.Revision != "2" {
		t.Errorf("Revision = %q", info.Revision)
	}
	if info.Disc != 1 {
		t.Errorf("Disc = %d", info.Disc)
	}
	if !reflect.DeepEqual(info.Tags, []string{"Beta 3"}) {
		t.Errorf("Tags = %v", info.Tags)
	}
}

func TestParseNameVersion(t *testing.T) {
	info := ParseName("Game Name (Japan) (v1.1)")
	if info.Version != "1.1" {
		t.Errorf("Version = %q", info.Version)
	}
}

func TestContains(t *testing.T) {
	if !Contains("US-JP-EU", "JP") {
		t.Error("expected JP in US-JP-EU")
	}
	if Contains("US-JP-EU", "FR") {
		t.Error("did not expect FR in US-JP-EU")
	}
	if Contains("", "US") {
		t.Error("did not expect US in empty string")
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"usa", "World", "us"})
	want := []string{"US", "JP", "EU"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeList = %v, want %v", got, want)
	}
}

func TestStripQualifiers(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Nintendo - Game Boy (Parent-Clone)", "Nintendo - Game Boy"},
		{"Nintendo - NES (Headered) (Parent-Clone)", "Nintendo - NES"},
		{"Sega - Dreamcast", "Sega - Dreamcast"},
	}
	for _, tt := range tests {
		if got := StripQualifiers(tt.name); got != tt.want {
			t.Errorf("StripQualifiers(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
