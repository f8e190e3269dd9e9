// Package datfile parses Logiqx-format DAT files and their companion
// clrmamepro header detector documents.
package datfile

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DumpStatus represents the verification status of a ROM dump.
type DumpStatus string

const (
	DumpStatusUnspecified DumpStatus = ""     // zero value when unset
	DumpStatusGood        DumpStatus = "good" // DTD default
	DumpStatusBadDump     DumpStatus = "baddump"
	DumpStatusNoDump      DumpStatus = "nodump"
	DumpStatusVerified    DumpStatus = "verified"
)

// Datafile represents a parsed DAT file.
type Datafile struct {
	Header Header
	Games  []Game
}

// Header contains metadata about the DAT file.
type Header struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description"`
	Version     string      `xml:"version"`
	Date        string      `xml:"date"`
	Author      string      `xml:"author"`
	Homepage    string      `xml:"homepage"`
	URL         string      `xml:"url"`
	Comment     string      `xml:"comment"`
	Subset      string      `xml:"subset"` // No-Intro only
	ClrMamePro  *ClrMamePro `xml:"clrmamepro"`
}

// ClrMamePro contains clrmamepro-specific options; Header names the
// sibling detector file when the system uses skip headers.
type ClrMamePro struct {
	Header       string `xml:"header,attr"`
	ForceMerging string `xml:"forcemerging,attr"`
	ForceNoDump  string `xml:"forcenodump,attr"`
	ForcePacking string `xml:"forcepacking,attr"`
}

// Game represents a game entry in the DAT (also called "machine" in
// MAME-derived formats).
type Game struct {
	Name      string
	IsBIOS    bool
	IsDevice  bool
	CloneOf   string
	RomOf     string
	ID        string // No-Intro only
	CloneOfID string // No-Intro only

	Comment     string
	Description string
	Category    string

	Releases []Release
	ROMs     []ROM
}

func (g *Game) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type rawGame struct {
		Name      string `xml:"name,attr"`
		IsBIOS    string `xml:"isbios,attr"`
		IsDevice  string `xml:"isdevice,attr"`
		CloneOf   string `xml:"cloneof,attr"`
		RomOf     string `xml:"romof,attr"`
		ID        string `xml:"id,attr"`
		CloneOfID string `xml:"cloneofid,attr"`

		Comment     string    `xml:"comment"`
		Description string    `xml:"description"`
		Category    string    `xml:"category"`
		Releases    []Release `xml:"release"`
		ROMs        []ROM     `xml:"rom"`
	}
	var raw rawGame
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	g.Name = raw.Name
	g.IsBIOS = parseBool(raw.IsBIOS)
	g.IsDevice = parseBool(raw.IsDevice)
	g.CloneOf = raw.CloneOf
	g.RomOf = raw.RomOf
	g.ID = raw.ID
	g.CloneOfID = raw.CloneOfID
	g.Comment = raw.Comment
	g.Description = raw.Description
	g.Category = raw.Category
	g.Releases = raw.Releases
	g.ROMs = raw.ROMs

	return nil
}

// ROM represents a ROM file entry.
type ROM struct {
	Name   string
	Size   int64
	CRC    string
	MD5    string
	SHA1   string
	Merge  string
	Status DumpStatus
}

func (r *ROM) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type rawROM struct {
		Name   string `xml:"name,attr"`
		Size   string `xml:"size,attr"`
		CRC    string `xml:"crc,attr"`
		MD5    string `xml:"md5,attr"`
		SHA1   string `xml:"sha1,attr"`
		Merge  string `xml:"merge,attr"`
		Status string `xml:"status,attr"`
	}
	var raw rawROM
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	r.Name = raw.Name
	r.Size, _ = strconv.ParseInt(raw.Size, 10, 64)
	r.CRC = strings.ToLower(raw.CRC)
	r.MD5 = strings.ToLower(raw.MD5)
	r.SHA1 = strings.ToLower(raw.SHA1)
	r.Merge = raw.Merge
	r.Status = DumpStatus(raw.Status)

	return nil
}

// Release represents a regional release entry.
type Release struct {
	Name   string `xml:"name,attr"`
	Region string `xml:"region,attr"`
}

// Parse reads and parses a DAT file.
func Parse(path string) (*Datafile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DAT file: %w", err)
	}
	defer f.Close()

	return ParseReader(f)
}

// ParseReader parses a DAT file from a reader.
func ParseReader(r io.Reader) (*Datafile, error) {
	// xmlDatafile is used only for top-level parsing to handle both
	// <game> and <machine> elements
	type xmlDatafile struct {
		XMLName  xml.Name `xml:"datafile"`
		Header   Header   `xml:"header"`
		Games    []Game   `xml:"game"`
		Machines []Game   `xml:"machine"`
	}

	var xmlFile xmlDatafile
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&xmlFile); err != nil {
		return nil, fmt.Errorf("failed to parse DAT file: %w", err)
	}

	file := &Datafile{
		Header: xmlFile.Header,
		Games:  make([]Game, 0, len(xmlFile.Games)+len(xmlFile.Machines)),
	}
	file.Games = append(file.Games, xmlFile.Games...)
	file.Games = append(file.Games, xmlFile.Machines...)

	return file, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "true" || s == "1"
}
