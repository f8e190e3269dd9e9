package database

import "fmt"

// ComputeGameCompletion recomputes the complete flag of every game in a
// system: a game is complete when it has at least one rom and none of
// its roms lacks a romfile.
func ComputeGameCompletion(q Queryer, systemID int64) error {
	_, err := q.Exec(`UPDATE games SET complete =
		EXISTS (SELECT 1 FROM roms WHERE roms.game_id = games.id)
		AND NOT EXISTS (SELECT 1 FROM roms
			WHERE roms.game_id = games.id AND roms.romfile_id IS NULL)
		WHERE system_id = ?`, systemID)
	if err != nil {
		return fmt.Errorf("failed to compute game completion: %w", err)
	}
	return nil
}

// ComputeSystemCompletion recomputes a system's aggregate counters from
// its games' completion flags. Ignored games are left out of both
// counters.
func ComputeSystemCompletion(q Queryer, systemID int64) error {
	if err := ComputeGameCompletion(q, systemID); err != nil {
		return err
	}
	_, err := q.Exec(`UPDATE systems SET
		completed_games = (SELECT COUNT(*) FROM games
			WHERE system_id = ? AND complete AND sorting != ?),
		total_games = (SELECT COUNT(*) FROM games
			WHERE system_id = ? AND sorting != ?)
		WHERE id = ?`,
		systemID, SortingIgnored, systemID, SortingIgnored, systemID)
	if err != nil {
		return fmt.Errorf("failed to compute system completion: %w", err)
	}
	return nil
}
