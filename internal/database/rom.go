package database

import (
	"database/sql"
	"fmt"
)

const romColumns = `id, game_id, name, bios, disk, size, crc, md5, sha1,
	status, romfile_id, parent_id`

func scanRom(row interface{ Scan(...any) error }) (*Rom, error) {
	var r Rom
	err := row.Scan(&r.ID, &r.GameID, &r.Name, &r.Bios, &r.Disk, &r.Size,
		&r.Crc, &r.Md5, &r.Sha1, &r.Status, &r.RomfileID, &r.ParentID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRoms(rows *sql.Rows) ([]Rom, error) {
	defer rows.Close()
	var roms []Rom
	for rows.Next() {
		r, err := scanRom(rows)
		if err != nil {
			return nil, err
		}
		roms = append(roms, *r)
	}
	return roms, rows.Err()
}

// RomInput carries the writable attributes of a rom.
type RomInput struct {
	GameID   int64
	Name     string
	Bios     bool
	Disk     bool
	Size     int64
	Crc      *string
	Md5      *string
	Sha1     *string
	Status   *string
	ParentID *int64
}

// CreateRom inserts a rom and returns its id.
func CreateRom(q Queryer, in RomInput) (int64, error) {
	res, err := q.Exec(`INSERT INTO roms (game_id, name, bios, disk, size,
		crc, md5, sha1, status, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.GameID, in.Name, in.Bios, in.Disk, in.Size, in.Crc, in.Md5, in.Sha1,
		in.Status, in.ParentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create rom %q: %w", in.Name, err)
	}
	return res.LastInsertId()
}

// UpdateRom overwrites the writable attributes of a rom. The romfile
// assignment is left untouched.
func UpdateRom(q Queryer, id int64, in RomInput) error {
	_, err := q.Exec(`UPDATE roms SET game_id = ?, name = ?, bios = ?,
		disk = ?, size = ?, crc = ?, md5 = ?, sha1 = ?, status = ?,
		parent_id = ? WHERE id = ?`,
		in.GameID, in.Name, in.Bios, in.Disk, in.Size, in.Crc, in.Md5, in.Sha1,
		in.Status, in.ParentID, id)
	if err != nil {
		return fmt.Errorf("failed to update rom %d: %w", id, err)
	}
	return nil
}

// FindRomByID returns the rom with the given id.
func FindRomByID(q Queryer, id int64) (*Rom, error) {
	r, err := scanRom(q.QueryRow(`SELECT `+romColumns+` FROM roms WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find rom %d: %w", id, err)
	}
	return r, nil
}

// FindRomsByGameID returns all roms of a game ordered by name.
func FindRomsByGameID(q Queryer, gameID int64) ([]Rom, error) {
	rows, err := q.Query(`SELECT `+romColumns+` FROM roms
		WHERE game_id = ? ORDER BY name`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to find roms: %w", err)
	}
	return collectRoms(rows)
}

// FindRomsBySizeAndHashAndSystemID looks up catalog roms by fingerprint
// within one system. The hash column is selected by algorithm name
// (crc, md5 or sha1).
func FindRomsBySizeAndHashAndSystemID(q Queryer, size int64, algorithm, hash string, systemID int64) ([]Rom, error) {
	var column string
	switch algorithm {
	case "crc":
		column = "crc"
	case "md5":
		column = "md5"
	case "sha1":
		column = "sha1"
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
	rows, err := q.Query(`SELECT `+romColumns+` FROM roms
		WHERE size = ? AND `+column+` = ?
		AND game_id IN (SELECT id FROM games WHERE system_id = ?)
		ORDER BY id`, size, hash, systemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find roms by fingerprint: %w", err)
	}
	return collectRoms(rows)
}

// FindRomsByRomfileID returns every rom backed by the given romfile.
func FindRomsByRomfileID(q Queryer, romfileID int64) ([]Rom, error) {
	rows, err := q.Query(`SELECT `+romColumns+` FROM roms
		WHERE romfile_id = ? ORDER BY name`, romfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to find roms: %w", err)
	}
	return collectRoms(rows)
}

// FindRomsWithRomfileByGameIDs materializes all assigned roms of the
// given games in one query, for the conversion and sorting pipelines.
func FindRomsWithRomfileByGameIDs(q Queryer, gameIDs []int64) ([]Rom, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}
	rows, err := q.Query(fmt.Sprintf(`SELECT `+romColumns+` FROM roms
		WHERE romfile_id IS NOT NULL AND game_id IN (%s)
		ORDER BY game_id, name`, placeholders(len(gameIDs))),
		int64Args(gameIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find roms: %w", err)
	}
	return collectRoms(rows)
}

// UpdateRomRomfile assigns (or clears) the physical file of a rom.
func UpdateRomRomfile(q Queryer, id int64, romfileID *int64) error {
	if _, err := q.Exec(`UPDATE roms SET romfile_id = ? WHERE id = ?`, romfileID, id); err != nil {
		return fmt.Errorf("failed to update rom %d romfile: %w", id, err)
	}
	return nil
}

// DeleteRomsByGameIDExcludingNames removes every rom of a game whose
// name is not in keep. Used by DAT reconciliation.
func DeleteRomsByGameIDExcludingNames(q Queryer, gameID int64, keep []string) error {
	args := []any{gameID}
	query := `DELETE FROM roms WHERE game_id = ?`
	if len(keep) > 0 {
		query += fmt.Sprintf(` AND name NOT IN (%s)`, placeholders(len(keep)))
		for _, name := range keep {
			args = append(args, name)
		}
	}
	if _, err := q.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete roms: %w", err)
	}
	return nil
}
