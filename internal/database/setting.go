package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// FindSettings returns all settings ordered by key.
func FindSettings(q Queryer) ([]Setting, error) {
	rows, err := q.Query(`SELECT id, key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to find settings: %w", err)
	}
	defer rows.Close()
	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.ID, &s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// FindSettingByKey returns the setting for key, or nil when unset.
func FindSettingByKey(q Queryer, key string) (*Setting, error) {
	var s Setting
	err := q.QueryRow(`SELECT id, key, value FROM settings WHERE key = ?`, key).
		Scan(&s.ID, &s.Key, &s.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find setting %q: %w", key, err)
	}
	return &s, nil
}

// SetSetting upserts a setting value.
func SetSetting(q Queryer, key string, value *string) error {
	_, err := q.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// DeleteSettingByKey removes a setting row.
func DeleteSettingByKey(q Queryer, key string) error {
	if _, err := q.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}
