package database

import (
	"database/sql"
	"errors"
	"fmt"
)

const romfileColumns = `id, path, size, romfile_type, parent_id`

func scanRomfile(row interface{ Scan(...any) error }) (*Romfile, error) {
	var f Romfile
	if err := row.Scan(&f.ID, &f.Path, &f.Size, &f.Type, &f.ParentID); err != nil {
		return nil, err
	}
	return &f, nil
}

func collectRomfiles(rows *sql.Rows) ([]Romfile, error) {
	defer rows.Close()
	var romfiles []Romfile
	for rows.Next() {
		f, err := scanRomfile(rows)
		if err != nil {
			return nil, err
		}
		romfiles = append(romfiles, *f)
	}
	return romfiles, rows.Err()
}

// CreateRomfile inserts a romfile and returns its id.
func CreateRomfile(q Queryer, path string, size int64, typ RomfileType, parentID *int64) (int64, error) {
	res, err := q.Exec(`INSERT INTO romfiles (path, size, romfile_type, parent_id)
		VALUES (?, ?, ?, ?)`, path, size, typ, parentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create romfile %q: %w", path, err)
	}
	return res.LastInsertId()
}

// UpdateRomfile stores a new path and size for a romfile.
func UpdateRomfile(q Queryer, id int64, path string, size int64) error {
	if _, err := q.Exec(`UPDATE romfiles SET path = ?, size = ? WHERE id = ?`, path, size, id); err != nil {
		return fmt.Errorf("failed to update romfile %d: %w", id, err)
	}
	return nil
}

// UpdateRomfileParent points a delta CHD at its parent romfile.
func UpdateRomfileParent(q Queryer, id int64, parentID *int64) error {
	if _, err := q.Exec(`UPDATE romfiles SET parent_id = ? WHERE id = ?`, parentID, id); err != nil {
		return fmt.Errorf("failed to update romfile %d parent: %w", id, err)
	}
	return nil
}

// FindRomfileByID returns the romfile with the given id.
func FindRomfileByID(q Queryer, id int64) (*Romfile, error) {
	f, err := scanRomfile(q.QueryRow(
		`SELECT `+romfileColumns+` FROM romfiles WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find romfile %d: %w", id, err)
	}
	return f, nil
}

// FindRomfileByPath returns the romfile at the given relative path, or
// nil when none exists.
func FindRomfileByPath(q Queryer, path string) (*Romfile, error) {
	f, err := scanRomfile(q.QueryRow(
		`SELECT `+romfileColumns+` FROM romfiles WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find romfile %q: %w", path, err)
	}
	return f, nil
}

// FindRomfilesByIDs returns the romfiles with the given ids.
func FindRomfilesByIDs(q Queryer, ids []int64) ([]Romfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(fmt.Sprintf(`SELECT `+romfileColumns+` FROM romfiles
		WHERE id IN (%s) ORDER BY path`, placeholders(len(ids))),
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find romfiles: %w", err)
	}
	return collectRomfiles(rows)
}

// FindOrphanRomfiles returns romfiles that no rom points at and that no
// game references as a playlist.
func FindOrphanRomfiles(q Queryer) ([]Romfile, error) {
	rows, err := q.Query(`SELECT ` + romfileColumns + ` FROM romfiles
		WHERE id NOT IN (SELECT romfile_id FROM roms WHERE romfile_id IS NOT NULL)
		AND id NOT IN (SELECT playlist_id FROM games WHERE playlist_id IS NOT NULL)
		ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphan romfiles: %w", err)
	}
	return collectRomfiles(rows)
}

// FindRomfilesInTrash returns romfiles living under a Trash subtree.
func FindRomfilesInTrash(q Queryer) ([]Romfile, error) {
	rows, err := q.Query(`SELECT ` + romfileColumns + ` FROM romfiles
		WHERE path LIKE '%/Trash/%' ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to find trashed romfiles: %w", err)
	}
	return collectRomfiles(rows)
}

// FindRomfilesByPathPrefix returns romfiles whose path starts with the
// given prefix (a system directory), ordered by path.
func FindRomfilesByPathPrefix(q Queryer, prefix string) ([]Romfile, error) {
	rows, err := q.Query(`SELECT `+romfileColumns+` FROM romfiles
		WHERE path LIKE ? || '%' ORDER BY path`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find romfiles: %w", err)
	}
	return collectRomfiles(rows)
}

// DeleteRomfileByID removes a romfile row.
func DeleteRomfileByID(q Queryer, id int64) error {
	if _, err := q.Exec(`DELETE FROM romfiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete romfile %d: %w", id, err)
	}
	return nil
}
