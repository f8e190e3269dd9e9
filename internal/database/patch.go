package database

import "fmt"

// CreatePatch attaches a patch to a rom at the next free index and
// returns its id.
func CreatePatch(q Queryer, romID int64, name string) (int64, error) {
	var next int64
	err := q.QueryRow(`SELECT COALESCE(MAX("index") + 1, 0) FROM patches
		WHERE rom_id = ?`, romID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to count patches: %w", err)
	}
	res, err := q.Exec(`INSERT INTO patches (rom_id, name, "index")
		VALUES (?, ?, ?)`, romID, name, next)
	if err != nil {
		return 0, fmt.Errorf("failed to create patch %q: %w", name, err)
	}
	return res.LastInsertId()
}

// FindPatchesByRomID returns a rom's patches in index order.
func FindPatchesByRomID(q Queryer, romID int64) ([]Patch, error) {
	rows, err := q.Query(`SELECT id, rom_id, name, "index" FROM patches
		WHERE rom_id = ? ORDER BY "index"`, romID)
	if err != nil {
		return nil, fmt.Errorf("failed to find patches: %w", err)
	}
	defer rows.Close()
	var patches []Patch
	for rows.Next() {
		var p Patch
		if err := rows.Scan(&p.ID, &p.RomID, &p.Name, &p.Index); err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, rows.Err()
}

// DeletePatchByID removes a patch row.
func DeletePatchByID(q Queryer, id int64) error {
	if _, err := q.Exec(`DELETE FROM patches WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete patch %d: %w", id, err)
	}
	return nil
}
