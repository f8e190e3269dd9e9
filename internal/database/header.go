package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// HeaderInput carries the writable attributes of a skip-header rule.
type HeaderInput struct {
	SystemID  int64
	Name      string
	Version   string
	Size      int64
	StartByte int64
	Rules     []HeaderRule
}

// CreateHeader inserts a header and its rules, replacing any previous
// header of the system.
func CreateHeader(q Queryer, in HeaderInput) (int64, error) {
	if err := DeleteHeaderBySystemID(q, in.SystemID); err != nil {
		return 0, err
	}
	res, err := q.Exec(`INSERT INTO headers (system_id, name, version, size, start_byte)
		VALUES (?, ?, ?, ?, ?)`,
		in.SystemID, in.Name, in.Version, in.Size, in.StartByte)
	if err != nil {
		return 0, fmt.Errorf("failed to create header %q: %w", in.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, rule := range in.Rules {
		_, err := q.Exec(`INSERT INTO header_rules (header_id, start_offset, hex_value)
			VALUES (?, ?, ?)`, id, rule.StartOffset, rule.HexValue)
		if err != nil {
			return 0, fmt.Errorf("failed to create header rule: %w", err)
		}
	}
	return id, nil
}

// FindHeaderBySystemID returns the system's header with its rules, or
// nil when the system has none.
func FindHeaderBySystemID(q Queryer, systemID int64) (*Header, error) {
	var h Header
	err := q.QueryRow(`SELECT id, system_id, name, version, size, start_byte
		FROM headers WHERE system_id = ?`, systemID).
		Scan(&h.ID, &h.SystemID, &h.Name, &h.Version, &h.Size, &h.StartByte)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find header: %w", err)
	}

	rows, err := q.Query(`SELECT id, header_id, start_offset, hex_value
		FROM header_rules WHERE header_id = ? ORDER BY id`, h.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find header rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r HeaderRule
		if err := rows.Scan(&r.ID, &r.HeaderID, &r.StartOffset, &r.HexValue); err != nil {
			return nil, err
		}
		h.Rules = append(h.Rules, r)
	}
	return &h, rows.Err()
}

// DeleteHeaderBySystemID removes a system's header; rules cascade.
func DeleteHeaderBySystemID(q Queryer, systemID int64) error {
	if _, err := q.Exec(`DELETE FROM headers WHERE system_id = ?`, systemID); err != nil {
		return fmt.Errorf("failed to delete header: %w", err)
	}
	return nil
}
