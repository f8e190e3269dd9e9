package datfile

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Detector represents a clrmamepro header detector document. A file's
// prefix satisfies the detector when every data test of a rule matches.
type Detector struct {
	Name    string
	Version string
	Rules   []Rule
}

// Rule is one skip rule: StartOffset is where the payload begins once
// the data tests match.
type Rule struct {
	StartOffset int64
	EndOffset   int64
	Tests       []Data
}

// Data is one prefix test: the hex value must appear at the offset.
type Data struct {
	Offset   int64
	HexValue string
}

func (r *Rule) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type rawData struct {
		Offset string `xml:"offset,attr"`
		Value  string `xml:"value,attr"`
	}
	type rawRule struct {
		StartOffset string    `xml:"start_offset,attr"`
		EndOffset   string    `xml:"end_offset,attr"`
		Tests       []rawData `xml:"data"`
	}
	var raw rawRule
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	r.StartOffset = parseHexOffset(raw.StartOffset)
	r.EndOffset = parseHexOffset(raw.EndOffset)
	for _, t := range raw.Tests {
		r.Tests = append(r.Tests, Data{
			Offset:   parseHexOffset(t.Offset),
			HexValue: strings.ToLower(t.Value),
		})
	}
	return nil
}

// ParseDetector reads and parses a header detector file.
func ParseDetector(path string) (*Detector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detector file: %w", err)
	}
	defer f.Close()

	return ParseDetectorReader(f)
}

// ParseDetectorReader parses a header detector document from a reader.
func ParseDetectorReader(r io.Reader) (*Detector, error) {
	type xmlDetector struct {
		XMLName xml.Name `xml:"detector"`
		Name    string   `xml:"name"`
		Version string   `xml:"version"`
		Rules   []Rule   `xml:"rule"`
	}

	var raw xmlDetector
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse detector file: %w", err)
	}

	return &Detector{
		Name:    raw.Name,
		Version: raw.Version,
		Rules:   raw.Rules,
	}, nil
}

// Detector offsets are hexadecimal, with or without a 0x prefix.
func parseHexOffset(s string) int64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0
	}
	return n
}
