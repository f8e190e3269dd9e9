package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"

	"github.com/romkeeper/romkeeper/internal/config"
	"github.com/romkeeper/romkeeper/internal/database"
	"github.com/romkeeper/romkeeper/internal/layout"
	"github.com/romkeeper/romkeeper/internal/util"
)

// PurgeSystem removes a system, all of its catalog rows and its
// directory tree on disk.
func PurgeSystem(q database.Queryer, system *database.System, out io.Writer) error {
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return err
	}

	// drop the romfile rows under the system directory first; game and
	// rom rows cascade with the system
	rows, err := database.FindRomfilesByPathPrefix(q, system.EffectiveName()+"/")
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := database.DeleteRomfileByID(q, row.ID); err != nil {
			return err
		}
	}
	if err := database.DeleteSystemByID(q, system.ID); err != nil {
		return err
	}

	dir := layout.SystemDirectory(romDirectory, system)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove system directory: %w", err)
	}
	fmt.Fprintf(out, "Purged %s\n", system.EffectiveName())
	return nil
}

// PurgeOrphans deletes romfile rows whose physical file vanished and
// reports files on disk unknown to the database.
func PurgeOrphans(q database.Queryer, out io.Writer) error {
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return err
	}

	orphans, err := database.FindOrphanRomfiles(q)
	if err != nil {
		return err
	}
	for _, row := range orphans {
		absPath := filepath.Join(romDirectory, filepath.FromSlash(row.Path))
		if _, statErr := os.Stat(absPath); statErr == nil {
			continue // still on disk: rematching owns it
		}
		fmt.Fprintf(out, "Dropping stale record %s\n", row.Path)
		if err := database.DeleteRomfileByID(q, row.ID); err != nil {
			return err
		}
	}

	// walk the rom directory for files the database does not know
	return godirwalk.Walk(romDirectory, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(romDirectory, path)
			if err != nil {
				return err
			}
			row, err := database.FindRomfileByPath(q, filepath.ToSlash(rel))
			if err != nil {
				return err
			}
			if row == nil {
				fmt.Fprintf(out, "Unknown file %s\n", rel)
			}
			return nil
		},
		Unsorted: false,
	})
}

// PurgeTrash deletes every trashed romfile, physically and from the
// database, then prunes empty Trash directories.
func PurgeTrash(q database.Queryer, out io.Writer) error {
	romDirectory, err := config.RomDirectory(q)
	if err != nil {
		return err
	}

	rows, err := database.FindRomfilesInTrash(q)
	if err != nil {
		return err
	}
	for _, row := range rows {
		absPath := filepath.Join(romDirectory, filepath.FromSlash(row.Path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", row.Path, err)
		}
		if err := database.DeleteRomfileByID(q, row.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %s\n", row.Path)
		util.RemoveEmptyDirs(filepath.Dir(absPath), romDirectory)
	}
	return nil
}
