package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/romfile"
	"github.com/romkeeper/romkeeper/internal/util"
)

// ImportPatch attaches a BPS/IPS/Xdelta patch to the rom whose name
// (extension aside) matches the patch file name, and moves the file
// into the system directory.
func (imp *Importer) ImportPatch(q database.Queryer, path string) error {
	file, err := romfile.Detect(path)
	if err != nil {
		return err
	}
	if file.Kind != romfile.KindPatch {
		return fmt.Errorf("%s is not a recognized patch format", file.Name())
	}

	base := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
	rom, err := imp.findPatchTarget(q, base)
	if err != nil {
		return err
	}

	if _, err := database.CreatePatch(q, rom.ID, file.Name()); err != nil {
		return err
	}

	dest := filepath.Join(layout.SystemDirectory(imp.RomDirectory, imp.System), file.Name())
	if err := util.MoveFile(file.Path, dest); err != nil {
		return err
	}
	fmt.Fprintf(imp.Out, "Attached %s to %s\n", file.Name(), rom.Name)
	return nil
}

// findPatchTarget resolves the rom a patch applies to by base-name
// match within the system.
func (imp *Importer) findPatchTarget(q database.Queryer, base string) (*database.Rom, error) {
	games, err := database.FindGamesBySystemID(q, imp.System.ID)
	if err != nil {
		return nil, err
	}
	for i := range games {
		roms, err := database.FindRomsByGameID(q, games[i].ID)
		if err != nil {
			return nil, err
		}
		for j := range roms {
			name := strings.TrimSuffix(roms[j].Name, filepath.Ext(roms[j].Name))
			if strings.EqualFold(name, base) {
				return &roms[j], nil
			}
		}
	}
	return nil, fmt.Errorf("no rom matches patch %q", base)
}
