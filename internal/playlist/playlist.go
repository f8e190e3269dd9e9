// Package playlist groups multi-disc games and generates their M3U
// playlists alongside the disc files.
package playlist

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/region"
	"github.com/romkeeper/romkeeper/internal/romfile"
)

var discRegex = regexp.MustCompile(`\s?\(Disc [0-9]+\)`)

// disc is one game of a multi-disc group with its primary romfile.
type disc struct {
	game    database.Game
	number  int
	relPath string
}

// Generate creates one M3U per multi-disc group of the system, stores
// it as a playlist romfile and points the group's games at it.
func Generate(q database.Queryer, system *database.System, out io.Writer) error {
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return err
	}

	games, err := database.FindGamesBySystemID(q, system.ID)
	if err != nil {
		return err
	}

	groups := make(map[string][]disc)
	for _, game := range games {
		info := region.ParseName(game.Name)
		if info.Disc == 0 {
			continue
		}
		roms, err := database.FindRomsWithRomfileByGameIDs(q, []int64{game.ID})
		if err != nil {
			return err
		}
		if len(roms) == 0 {
			continue
		}
		row, err := database.FindRomfileByID(q, *roms[0].RomfileID)
		if err != nil {
			return err
		}
		key := discRegex.ReplaceAllString(game.Name, "")
		groups[key] = append(groups[key], disc{game: game, number: info.Disc, relPath: row.Path})
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		discs := groups[key]
		if len(discs) < 2 {
			continue
		}
		sort.Slice(discs, func(i, j int) bool { return discs[i].number < discs[j].number })
		if err := writeGroup(q, romDirectory, key, discs, out); err != nil {
			return err
		}
	}
	return nil
}

func writeGroup(q database.Queryer, romDirectory, name string, discs []disc, out io.Writer) error {
	// the playlist is co-located with its first disc
	dir := filepath.Dir(filepath.Join(romDirectory, filepath.FromSlash(discs[0].relPath)))
	m3uPath := filepath.Join(dir, name+".m3u")

	names := make([]string, len(discs))
	for i, d := range discs {
		names[i] = filepath.Base(filepath.FromSlash(d.relPath))
	}
	playlist, err := romfile.WritePlaylist(m3uPath, names)
	if err != nil {
		return err
	}

	rel, err := romfile.RelativePath(romDirectory, playlist.Path)
	if err != nil {
		return err
	}
	row, err := database.FindRomfileByPath(q, rel)
	if err != nil {
		return err
	}
	var playlistID int64
	if row == nil {
		playlistID, err = database.CreateRomfile(q, rel, playlist.Size, database.RomfileTypePlaylist, nil)
		if err != nil {
			return err
		}
	} else {
		playlistID = row.ID
		if err := database.UpdateRomfile(q, playlistID, rel, playlist.Size); err != nil {
			return err
		}
	}

	for _, d := range discs {
		if err := database.UpdateGamePlaylist(q, d.game.ID, &playlistID); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Generated %s (%s)\n", filepath.Base(m3uPath), strings.Join(names, ", "))
	return nil
}
