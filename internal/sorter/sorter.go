// Package sorter elects one preferred variant per clone-group and
// relocates romfiles between the all-regions, 1G1R and trash subtrees.
package sorter

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/region"
	"github.com/romkeeper/romkeeper/internal/util"
)

func renameFile(src, dst string) error { return util.MoveFile(src, dst) }

// PreferredVersion selects among revisions of the same release.
type PreferredVersion int

const (
	VersionNone PreferredVersion = iota
	VersionNew
	VersionOld
)

// PreferredRegion selects among region spreads of the same release.
type PreferredRegion int

const (
	RegionNone PreferredRegion = iota
	RegionNarrow
	RegionWide
)

// Options are the per-system sorting preferences.
type Options struct {
	RegionsAll      []string // unordered set of accepted regions
	RegionsOne      []string // ordered 1G1R preference
	DiscardReleases []string // e.g. Beta, Proto
	DiscardFlags    []string // e.g. Virtual Console
	Languages       []string // accepted language tags, empty accepts all
	PreferFlags     []string
	PreferVersions  PreferredVersion
	PreferRegions   PreferredRegion
	Strict          bool
	Scheme          layout.SubfolderScheme
}

// LoadOptions reads the sorting preferences from the settings table.
func LoadOptions(q database.Queryer) (*Options, error) {
	opts := &Options{}

	var err error
	if opts.RegionsAll, err = listSetting(q, config.RegionsAllKey); err != nil {
		return nil, err
	}
	if opts.RegionsOne, err = listSetting(q, config.RegionsOneKey); err != nil {
		return nil, err
	}
	if opts.DiscardReleases, err = config.GetList(q, config.DiscardReleasesKey); err != nil {
		return nil, err
	}
	if opts.DiscardFlags, err = config.GetList(q, config.DiscardFlagsKey); err != nil {
		return nil, err
	}
	if opts.Languages, err = config.GetList(q, config.LanguagesKey); err != nil {
		return nil, err
	}
	if opts.PreferFlags, err = config.GetList(q, config.PreferFlagsKey); err != nil {
		return nil, err
	}

	versions, err := config.GetString(q, config.PreferVersionsKey)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(versions) {
	case "new":
		opts.PreferVersions = VersionNew
	case "old":
		opts.PreferVersions = VersionOld
	}

	regions, err := config.GetString(q, config.PreferRegionsKey)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(regions) {
	case "narrow":
		opts.PreferRegions = RegionNarrow
	case "broad", "wide":
		opts.PreferRegions = RegionWide
	}

	schemeName, err := config.GetString(q, config.SubfolderSchemeKey)
	if err != nil {
		return nil, err
	}
	if opts.Scheme, err = layout.ParseScheme(schemeName); err != nil {
		return nil, err
	}
	return opts, nil
}

func listSetting(q database.Queryer, key string) ([]string, error) {
	list, err := config.GetList(q, key)
	if err != nil {
		return nil, err
	}
	return region.NormalizeList(list), nil
}

// destinations computed per game.
type destination int

const (
	destAllRegions destination = iota
	destOneRegion
	destTrash
)

// Sort partitions the system's games, elects the 1G1R representative
// of each clone-group and relocates every affected romfile.
func Sort(q database.Queryer, system *database.System, opts *Options, out io.Writer) error {
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return err
	}

	games, err := database.FindGamesBySystemID(q, system.ID)
	if err != nil {
		return err
	}

	destinations := make(map[int64]destination, len(games))
	var kept []database.Game

	// ignored games go straight to trash
	for _, game := range games {
		if isIgnored(&game, opts) {
			destinations[game.ID] = destTrash
		} else {
			kept = append(kept, game)
		}
	}

	// clone-groups keyed by the root parent
	groups := make(map[int64][]database.Game)
	var order []int64
	for _, game := range kept {
		root := game.ID
		if game.ParentID != nil {
			root = *game.ParentID
		}
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], game)
	}

	for _, root := range order {
		group := groups[root]
		elected := elect(group, opts)
		for _, game := range group {
			switch {
			case elected != nil && game.ID == elected.ID:
				destinations[game.ID] = destOneRegion
			case regionsIntersect(game.Regions, opts.RegionsAll) && !opts.Strict:
				destinations[game.ID] = destAllRegions
			default:
				destinations[game.ID] = destTrash
			}
		}
	}

	for _, game := range games {
		if err := place(q, romDirectory, system, &game, destinations[game.ID], opts.Scheme, out); err != nil {
			return err
		}
	}
	return database.ComputeSystemCompletion(q, system.ID)
}

// isIgnored applies the release-tag, flag and language filters.
func isIgnored(game *database.Game, opts *Options) bool {
	info := region.ParseName(game.Name)
	for _, tag := range info.Tags {
		for _, discard := range opts.DiscardReleases {
			if tag == discard || strings.HasPrefix(tag, discard+" ") {
				return true
			}
		}
		for _, discard := range opts.DiscardFlags {
			if strings.Contains(tag, discard) {
				return true
			}
		}
	}
	if len(opts.Languages) > 0 && len(info.Languages) > 0 {
		if !intersects(info.Languages, opts.Languages) {
			return true
		}
	}
	return false
}

// elect walks the ordered 1G1R regions and returns the representative
// clone, or nil when no clone matches any preferred region.
func elect(group []database.Game, opts *Options) *database.Game {
	for _, preferred := range opts.RegionsOne {
		var candidates []database.Game
		for _, game := range group {
			if region.Contains(game.Regions, preferred) {
				candidates = append(candidates, game)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sortGamesByWeight(candidates, preferred, opts)
		return &candidates[0]
	}
	return nil
}

// sortGamesByWeight orders candidates most-preferred first along the
// flag, region-spread, version and revision axes.
func sortGamesByWeight(games []database.Game, preferred string, opts *Options) {
	sort.SliceStable(games, func(i, j int) bool {
		return compareGames(&games[i], &games[j], preferred, opts) < 0
	})
}

// compareGames returns a negative value when a is preferred over b.
func compareGames(a, b *database.Game, preferred string, opts *Options) int {
	infoA := region.ParseName(a.Name)
	infoB := region.ParseName(b.Name)

	// explicit preferred-flag tokens, first listed wins
	if d := flagRank(infoA.Tags, opts.PreferFlags) - flagRank(infoB.Tags, opts.PreferFlags); d != 0 {
		return d
	}

	// narrow prefers the tightest region set around the preferred
	// region; wide prefers the broadest release
	switch opts.PreferRegions {
	case RegionNarrow:
		if d := len(region.Codes(a.Regions)) - len(region.Codes(b.Regions)); d != 0 {
			return d
		}
	case RegionWide:
		if d := len(region.Codes(b.Regions)) - len(region.Codes(a.Regions)); d != 0 {
			return d
		}
	}

	// version preference: New takes the highest revision, Old the
	// lowest (vanilla beats Rev 1)
	revA := revisionWeight(infoA)
	revB := revisionWeight(infoB)
	switch opts.PreferVersions {
	case VersionNew:
		if revA != revB {
			if revA > revB {
				return -1
			}
			return 1
		}
	case VersionOld:
		if revA != revB {
			if revA < revB {
				return -1
			}
			return 1
		}
	default:
		if revA != revB {
			if revA > revB {
				return -1
			}
			return 1
		}
	}

	// lexicographic fallback on the raw name keeps the order stable
	return strings.Compare(a.Name, b.Name)
}

// flagRank returns the index of the first preferred flag a game
// carries, or a rank past the end when it carries none.
func flagRank(tags, preferFlags []string) int {
	for rank, flag := range preferFlags {
		for _, tag := range tags {
			if strings.Contains(tag, flag) {
				return rank
			}
		}
	}
	return len(preferFlags)
}

// revisionWeight folds the revision and version tokens into one
// comparable number; absence weighs zero.
func revisionWeight(info region.NameInfo) int {
	weight := 0
	if info.Revision != "" {
		weight = tokenWeight(info.Revision)
	}
	if info.Version != "" && weight == 0 {
		weight = tokenWeight(strings.ReplaceAll(info.Version, ".", ""))
	}
	return weight
}

func tokenWeight(token string) int {
	n := 0
	digits := false
	for _, r := range token {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			digits = true
		}
	}
	if digits {
		return n
	}
	// letter revisions: A=1, B=2, ...
	if len(token) == 1 && token[0] >= 'A' && token[0] <= 'Z' {
		return int(token[0]-'A') + 1
	}
	return 0
}

func regionsIntersect(regions string, accepted []string) bool {
	for _, code := range region.Codes(regions) {
		for _, a := range accepted {
			if code == a {
				return true
			}
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// place relocates a game's romfiles into the subtree of its
// destination and records the new sorting value.
func place(q database.Queryer, romDirectory string, system *database.System, game *database.Game, dest destination, scheme layout.SubfolderScheme, out io.Writer) error {
	sorting := database.SortingAllRegions
	subtree := layout.SubtreeAll
	switch dest {
	case destOneRegion:
		sorting = database.SortingOneRegion
		subtree = layout.SubtreeOne
	case destTrash:
		sorting = database.SortingIgnored
		subtree = layout.SubtreeTrash
	}

	if game.Sorting != sorting {
		if err := database.UpdateGameSorting(q, game.ID, sorting); err != nil {
			return err
		}
	}

	roms, err := database.FindRomsWithRomfileByGameIDs(q, []int64{game.ID})
	if err != nil {
		return err
	}
	grouped := system.Arcade || len(roms) > 1
	moved := false
	for i := range roms {
		row, err := database.FindRomfileByID(q, *roms[i].RomfileID)
		if err != nil {
			return err
		}
		var target string
		if dest == destTrash {
			target = layout.TrashPath(romDirectory, system, filepath.Base(filepath.FromSlash(row.Path)))
		} else {
			target = layout.RomfilePath(romDirectory, system, game, roms[i].Name, grouped, scheme, subtree)
		}
		current := filepath.Join(romDirectory, filepath.FromSlash(row.Path))
		if current == target {
			continue
		}
		if err := moveRomfile(q, row, current, target, romDirectory); err != nil {
			return err
		}
		moved = true
	}

	// keep the group playlist next to its discs
	if moved && game.PlaylistID != nil {
		if err := movePlaylist(q, romDirectory, system, game, scheme, subtree); err != nil {
			return err
		}
	}
	if moved {
		fmt.Fprintf(out, "Sorted %s\n", game.Name)
	}
	return nil
}

func moveRomfile(q database.Queryer, row *database.Romfile, current, target, romDirectory string) error {
	rel, err := filepath.Rel(romDirectory, target)
	if err != nil {
		return fmt.Errorf("failed to relativize path: %w", err)
	}
	if err := renameFile(current, target); err != nil {
		return err
	}
	return database.UpdateRomfile(q, row.ID, filepath.ToSlash(rel), row.Size)
}

func movePlaylist(q database.Queryer, romDirectory string, system *database.System, game *database.Game, scheme layout.SubfolderScheme, subtree string) error {
	row, err := database.FindRomfileByID(q, *game.PlaylistID)
	if err != nil {
		return err
	}
	name := filepath.Base(filepath.FromSlash(row.Path))
	var target string
	if subtree == layout.SubtreeTrash {
		target = layout.TrashPath(romDirectory, system, name)
	} else {
		target = layout.RomfilePath(romDirectory, system, game, name, false, scheme, subtree)
	}
	current := filepath.Join(romDirectory, filepath.FromSlash(row.Path))
	if current == target {
		return nil
	}
	return moveRomfile(q, row, current, target, romDirectory)
}
