package datfile

import (
	"strings"
	"testing"
)

const sampleDetector = `<?xml version="1.0"?>
<detector>
	<name>No-Intro_NES</name>
	<version>20240101</version>
	<rule start_offset="10">
		<data offset="0" value="4E4553"/>
		<data offset="3" value="1A"/>
	</rule>
</detector>`

func TestParseDetectorReader(t *testing.T) {
	detector, err := ParseDetectorReader(strings.NewReader(sampleDetector))
	if err != nil {
		t.Fatal(err)
	}
	if detector.Name != "No-Intro_NES" {
		t.Errorf("name = %q", detector.Name)
	}
	if len(detector.Rules) != 1 {
		t.Fatalf("rules = %d", len(detector.Rules))
	}
	rule := detector.Rules[0]
	// offsets are hexadecimal: 0x10 is 16 bytes
	if rule.StartOffset != 16 {
		t.Errorf("start offset = %d, want 16", rule.StartOffset)
	}
	if len(rule.Tests) != 2 {
		t.Fatalf("tests = %d", len(rule.Tests))
	}
	if rule.Tests[0].HexValue != "4e4553" {
		t.Errorf("value = %q", rule.Tests[0].HexValue)
	}
	if rule.Tests[1].Offset != 3 {
		t.Errorf("offset = %d", rule.Tests[1].Offset)
	}
}
