// Package layout computes canonical on-disk locations for romfiles
// under the rom directory.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/romkeeper/romkeeper/internal/database"
)

// SubfolderScheme selects the optional letter subfolder layer.
type SubfolderScheme int

const (
	SubfolderNone SubfolderScheme = iota
	SubfolderAlpha
)

// ParseScheme validates a SUBFOLDER_SCHEME setting value.
func ParseScheme(s string) (SubfolderScheme, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return SubfolderNone, nil
	case "alpha":
		return SubfolderAlpha, nil
	}
	return SubfolderNone, fmt.Errorf("unknown subfolder scheme %q", s)
}

// AlphaSubfolder returns the letter subfolder of a name: its first
// alphanumeric rune uppercased when that rune is a letter, "#" when it
// is a digit or the name has no letter or digit at all. Leading
// punctuation is skipped.
func AlphaSubfolder(name string) string {
	for _, r := range name {
		if unicode.IsLetter(r) {
			return strings.ToUpper(string(r))
		}
		if unicode.IsDigit(r) {
			return "#"
		}
	}
	return "#"
}

// Subtrees within a system directory.
const (
	SubtreeAll   = ""
	SubtreeOne   = "1G1R"
	SubtreeTrash = "Trash"
)

// SystemDirectory returns the absolute directory of a system.
func SystemDirectory(romDirectory string, system *database.System) string {
	return filepath.Join(romDirectory, system.EffectiveName())
}

// RomfilePath computes the canonical absolute path of a rom's file.
// Grouped games (arcade sets, multi-file games) nest their files in a
// game directory.
func RomfilePath(romDirectory string, system *database.System, game *database.Game, romName string, grouped bool, scheme SubfolderScheme, subtree string) string {
	parts := []string{SystemDirectory(romDirectory, system)}
	if subtree != SubtreeAll {
		parts = append(parts, subtree)
	}
	if scheme == SubfolderAlpha {
		parts = append(parts, AlphaSubfolder(game.Name))
	}
	if grouped {
		parts = append(parts, game.Name)
	}
	parts = append(parts, romName)
	return filepath.Join(parts...)
}

// TrashPath computes the destination of a discarded file.
func TrashPath(romDirectory string, system *database.System, name string) string {
	return filepath.Join(SystemDirectory(romDirectory, system), SubtreeTrash, name)
}
