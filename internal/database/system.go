package database

import (
	"database/sql"
	"errors"
	"fmt"
)

const systemColumns = `id, name, custom_name, description, version, url, arcade,
	merging, completed_games, total_games, custom_extension`

func scanSystem(row interface{ Scan(...any) error }) (*System, error) {
	var s System
	var merging string
	err := row.Scan(&s.ID, &s.Name, &s.CustomName, &s.Description, &s.Version,
		&s.URL, &s.Arcade, &merging, &s.CompletedGames, &s.TotalGames,
		&s.CustomExtension)
	if err != nil {
		return nil, err
	}
	s.Merging = Merging(merging)
	return &s, nil
}

// SystemInput carries the writable attributes of a system.
type SystemInput struct {
	Name            string
	CustomName      *string
	Description     string
	Version         string
	URL             *string
	Arcade          bool
	Merging         Merging
	CustomExtension *string
}

// CreateSystem inserts a system and returns its id.
func CreateSystem(q Queryer, in SystemInput) (int64, error) {
	res, err := q.Exec(`INSERT INTO systems (name, custom_name, description,
		version, url, arcade, merging, custom_extension)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.CustomName, in.Description, in.Version, in.URL, in.Arcade,
		string(in.Merging), in.CustomExtension)
	if err != nil {
		return 0, fmt.Errorf("failed to create system %q: %w", in.Name, err)
	}
	return res.LastInsertId()
}

// UpdateSystem overwrites the writable attributes of a system.
func UpdateSystem(q Queryer, id int64, in SystemInput) error {
	_, err := q.Exec(`UPDATE systems SET name = ?, custom_name = ?,
		description = ?, version = ?, url = ?, arcade = ?, merging = ?,
		custom_extension = ? WHERE id = ?`,
		in.Name, in.CustomName, in.Description, in.Version, in.URL, in.Arcade,
		string(in.Merging), in.CustomExtension, id)
	if err != nil {
		return fmt.Errorf("failed to update system %d: %w", id, err)
	}
	return nil
}

// FindSystems returns all systems ordered by name.
func FindSystems(q Queryer) ([]System, error) {
	rows, err := q.Query(`SELECT ` + systemColumns + ` FROM systems ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to find systems: %w", err)
	}
	defer rows.Close()

	var systems []System
	for rows.Next() {
		s, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, *s)
	}
	return systems, rows.Err()
}

// FindSystemByID returns the system with the given id.
func FindSystemByID(q Queryer, id int64) (*System, error) {
	s, err := scanSystem(q.QueryRow(
		`SELECT `+systemColumns+` FROM systems WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find system %d: %w", id, err)
	}
	return s, nil
}

// FindSystemByName returns the system with the given DAT name, or nil
// when no such system exists.
func FindSystemByName(q Queryer, name string) (*System, error) {
	s, err := scanSystem(q.QueryRow(
		`SELECT `+systemColumns+` FROM systems WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find system %q: %w", name, err)
	}
	return s, nil
}

// DeleteSystemByID removes a system; its games, roms and header cascade.
func DeleteSystemByID(q Queryer, id int64) error {
	if _, err := q.Exec(`DELETE FROM systems WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete system %d: %w", id, err)
	}
	return nil
}

// UpdateSystemCompletion stores the aggregate completion counters.
func UpdateSystemCompletion(q Queryer, id, completed, total int64) error {
	_, err := q.Exec(`UPDATE systems SET completed_games = ?, total_games = ?
		WHERE id = ?`, completed, total, id)
	if err != nil {
		return fmt.Errorf("failed to update system %d completion: %w", id, err)
	}
	return nil
}
