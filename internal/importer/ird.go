package importer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/lib/ird"
)

// ImportIrd parses a PS3 IRD descriptor, flags the matching game as a
// JB-folder game and materializes its child roms from the disc's
// ISO9660 listing. Only the parent rom ever carries a romfile.
func (imp *Importer) ImportIrd(q database.Queryer, path string) error {
	descriptor, err := ird.Parse(path)
	if err != nil {
		return err
	}

	game, err := imp.findIrdGame(q, descriptor)
	if err != nil {
		return err
	}

	roms, err := database.FindRomsByGameID(q, game.ID)
	if err != nil {
		return err
	}
	var parent *database.Rom
	for i := range roms {
		if roms[i].ParentID == nil {
			parent = &roms[i]
			break
		}
	}
	if parent == nil {
		return fmt.Errorf("game %s has no parent rom to expand", game.Name)
	}

	entries, err := descriptor.Files()
	if err != nil {
		return err
	}
	hashBySector := make(map[uint64][16]byte, len(descriptor.FileHashes))
	for _, fh := range descriptor.FileHashes {
		hashBySector[fh.Sector] = fh.MD5
	}

	if _, err := q.Exec(`UPDATE games SET jbfolder = 1 WHERE id = ?`, game.ID); err != nil {
		return fmt.Errorf("failed to flag game %s: %w", game.Name, err)
	}

	existing, err := database.FindRomsByGameID(q, game.ID)
	if err != nil {
		return err
	}
	byName := make(map[string]bool, len(existing))
	for i := range existing {
		byName[existing[i].Name] = true
	}

	for _, entry := range entries {
		if byName[entry.Path] {
			continue
		}
		in := database.RomInput{
			GameID:   game.ID,
			Name:     entry.Path,
			Size:     entry.Size,
			ParentID: &parent.ID,
		}
		if md5, ok := hashBySector[uint64(entry.Extent)]; ok {
			digest := hex.EncodeToString(md5[:])
			in.Md5 = &digest
		}
		if _, err := database.CreateRom(q, in); err != nil {
			return err
		}
	}

	fmt.Fprintf(imp.Out, "Expanded %s with %d JB-folder entries\n", game.Name, len(entries))
	return nil
}

// findIrdGame resolves the catalog game an IRD belongs to by serial,
// falling back to name.
func (imp *Importer) findIrdGame(q database.Queryer, descriptor *ird.IRD) (*database.Game, error) {
	games, err := database.FindGamesBySystemID(q, imp.System.ID)
	if err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(descriptor.GameID)
	for i := range games {
		if games[i].ExternalID != nil && *games[i].ExternalID == serial {
			return &games[i], nil
		}
	}
	for i := range games {
		if strings.Contains(games[i].Name, serial) || games[i].Name == descriptor.GameName {
			return &games[i], nil
		}
	}
	return nil, fmt.Errorf("no game matches IRD serial %s", serial)
}
