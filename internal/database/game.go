package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const gameColumns = `id, system_id, name, description, comment, external_id,
	device, bios, jbfolder, regions, sorting, complete, parent_id, bios_id,
	playlist_id`

func scanGame(row interface{ Scan(...any) error }) (*Game, error) {
	var g Game
	err := row.Scan(&g.ID, &g.SystemID, &g.Name, &g.Description, &g.Comment,
		&g.ExternalID, &g.Device, &g.Bios, &g.Jbfolder, &g.Regions, &g.Sorting,
		&g.Complete, &g.ParentID, &g.BiosID, &g.PlaylistID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func collectGames(rows *sql.Rows) ([]Game, error) {
	defer rows.Close()
	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// GameInput carries the writable attributes of a game.
type GameInput struct {
	SystemID    int64
	Name        string
	Description string
	Comment     *string
	ExternalID  *string
	Device      bool
	Bios        bool
	Jbfolder    bool
	Regions     string
	ParentID    *int64
	BiosID      *int64
}

// CreateGame inserts a game and returns its id.
func CreateGame(q Queryer, in GameInput) (int64, error) {
	res, err := q.Exec(`INSERT INTO games (system_id, name, description,
		comment, external_id, device, bios, jbfolder, regions, parent_id, bios_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.SystemID, in.Name, in.Description, in.Comment, in.ExternalID,
		in.Device, in.Bios, in.Jbfolder, in.Regions, in.ParentID, in.BiosID)
	if err != nil {
		return 0, fmt.Errorf("failed to create game %q: %w", in.Name, err)
	}
	return res.LastInsertId()
}

// UpdateGame overwrites the writable attributes of a game.
func UpdateGame(q Queryer, id int64, in GameInput) error {
	_, err := q.Exec(`UPDATE games SET system_id = ?, name = ?, description = ?,
		comment = ?, external_id = ?, device = ?, bios = ?, jbfolder = ?,
		regions = ?, parent_id = ?, bios_id = ? WHERE id = ?`,
		in.SystemID, in.Name, in.Description, in.Comment, in.ExternalID,
		in.Device, in.Bios, in.Jbfolder, in.Regions, in.ParentID, in.BiosID, id)
	if err != nil {
		return fmt.Errorf("failed to update game %d: %w", id, err)
	}
	return nil
}

// FindGameByID returns the game with the given id.
func FindGameByID(q Queryer, id int64) (*Game, error) {
	g, err := scanGame(q.QueryRow(
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find game %d: %w", id, err)
	}
	return g, nil
}

// FindGameByNameAndSystemID returns the named game in a system, or nil.
func FindGameByNameAndSystemID(q Queryer, name string, systemID int64) (*Game, error) {
	g, err := scanGame(q.QueryRow(`SELECT `+gameColumns+` FROM games
		WHERE name = ? AND system_id = ?`, name, systemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find game %q: %w", name, err)
	}
	return g, nil
}

// FindGamesBySystemID returns all games of a system ordered by name.
func FindGamesBySystemID(q Queryer, systemID int64) ([]Game, error) {
	rows, err := q.Query(`SELECT `+gameColumns+` FROM games
		WHERE system_id = ? ORDER BY name`, systemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find games: %w", err)
	}
	return collectGames(rows)
}

// FindGamesByIDs returns the games with the given ids.
func FindGamesByIDs(q Queryer, ids []int64) ([]Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(fmt.Sprintf(`SELECT `+gameColumns+` FROM games
		WHERE id IN (%s) ORDER BY name`, placeholders(len(ids))),
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find games: %w", err)
	}
	return collectGames(rows)
}

// DeleteGameByID removes a game; its roms cascade.
func DeleteGameByID(q Queryer, id int64) error {
	if _, err := q.Exec(`DELETE FROM games WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete game %d: %w", id, err)
	}
	return nil
}

// UpdateGameSorting stores the 1G1R destination of a game.
func UpdateGameSorting(q Queryer, id int64, sorting Sorting) error {
	if _, err := q.Exec(`UPDATE games SET sorting = ? WHERE id = ?`, sorting, id); err != nil {
		return fmt.Errorf("failed to update game %d sorting: %w", id, err)
	}
	return nil
}

// UpdateGamePlaylist points a game at its M3U playlist romfile.
func UpdateGamePlaylist(q Queryer, id int64, playlistID *int64) error {
	if _, err := q.Exec(`UPDATE games SET playlist_id = ? WHERE id = ?`, playlistID, id); err != nil {
		return fmt.Errorf("failed to update game %d playlist: %w", id, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
