package database

// Sorting is the 1G1R destination assigned to a game.
type Sorting int64

const (
	SortingAllRegions Sorting = iota
	SortingOneRegion
	SortingIgnored
)

// RomfileType distinguishes regular romfiles from M3U playlists.
type RomfileType int64

const (
	RomfileTypeRegular RomfileType = iota
	RomfileTypePlaylist
)

// Merging is the arcade set merging strategy of a system.
type Merging string

const (
	MergingSplit         Merging = "split"
	MergingNonMerged     Merging = "non-merged"
	MergingFullNonMerged Merging = "full-non-merged"
	MergingMerged        Merging = "merged"
	MergingFullMerged    Merging = "full-merged"
)

// System is a console or platform catalog imported from a DAT file.
type System struct {
	ID              int64
	Name            string
	CustomName      *string
	Description     string
	Version         string
	URL             *string
	Arcade          bool
	Merging         Merging
	CompletedGames  int64
	TotalGames      int64
	CustomExtension *string
}

// EffectiveName is the custom name when set, the DAT name otherwise.
func (s *System) EffectiveName() string {
	if s.CustomName != nil && *s.CustomName != "" {
		return *s.CustomName
	}
	return s.Name
}

// Game is one catalog entry belonging to a system.
type Game struct {
	ID          int64
	SystemID    int64
	Name        string
	Description string
	Comment     *string
	ExternalID  *string
	Device      bool
	Bios        bool
	Jbfolder    bool
	Regions     string
	Sorting     Sorting
	Complete    bool
	ParentID    *int64
	BiosID      *int64
	PlaylistID  *int64
}

// Rom is one logical file expected by a game.
type Rom struct {
	ID        int64
	GameID    int64
	Name      string
	Bios      bool
	Disk      bool
	Size      int64
	Crc       *string
	Md5       *string
	Sha1      *string
	Status    *string
	RomfileID *int64
	ParentID  *int64
}

// Romfile is one physical file on disk, with a path relative to the
// rom directory root.
type Romfile struct {
	ID       int64
	Path     string
	Size     int64
	Type     RomfileType
	ParentID *int64
}

// Header is a system-wide skip-header rule. The first Size bytes are
// skipped before hashing when every rule matches the file prefix.
type Header struct {
	ID        int64
	SystemID  int64
	Name      string
	Version   string
	Size      int64
	StartByte int64
	Rules     []HeaderRule
}

// HeaderRule is one prefix test: the hex pattern must appear at the
// given offset.
type HeaderRule struct {
	ID          int64
	HeaderID    int64
	StartOffset int64
	HexValue    string
}

// Patch is a named binary patch attached to a rom, ordered by Index.
type Patch struct {
	ID    int64
	RomID int64
	Name  string
	Index int64
}

// Setting is one key/value configuration row.
type Setting struct {
	ID    int64
	Key   string
	Value *string
}
