package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrTransferNotFound is returned when deleting an unknown transfer.
var ErrTransferNotFound = errors.New("transfer not found")

// timestampLayout is the layout SQLite date functions understand.
const timestampLayout = "2006-01-02 15:04:05"

// Transfer is one sent or received clipboard payload.
type Transfer struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Direction    string    `json:"direction"`
	Port         string    `json:"port"`
	Chars        int       `json:"chars"`
	Bytes        int       `json:"bytes"`
	Preview      string    `json:"preview"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error,omitempty"`
}

// SaveTransfer stores t and sets its ID. A zero Timestamp means now.
func (db *DB) SaveTransfer(t *Transfer) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	query := `
		INSERT INTO transfers (
			timestamp, direction, port, char_count, byte_count, preview, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errorMessage sql.NullString
	if t.ErrorMessage != "" {
		errorMessage = sql.NullString{String: t.ErrorMessage, Valid: true}
	}

	result, err := db.conn.Exec(query,
		t.Timestamp.UTC().Format(timestampLayout), t.Direction, t.Port,
		t.Chars, t.Bytes, t.Preview, t.Success, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save transfer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	t.ID = id
	return nil
}

// GetTransfers retrieves transfers newest first with pagination
func (db *DB) GetTransfers(limit, offset int) ([]Transfer, error) {
	query := `
		SELECT id, timestamp, direction, port, char_count, byte_count, preview, success, error_message
		FROM transfers
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []Transfer
	for rows.Next() {
		var t Transfer
		var errorMessage sql.NullString

		err := rows.Scan(
			&t.ID, &t.Timestamp, &t.Direction, &t.Port,
			&t.Chars, &t.Bytes, &t.Preview, &t.Success, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}

		if errorMessage.Valid {
			t.ErrorMessage = errorMessage.String
		}

		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

// DeleteTransfer deletes a transfer by ID
func (db *DB) DeleteTransfer(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTransferNotFound
	}

	return nil
}

// GetTransferCount returns the total number of transfers
func (db *DB) GetTransferCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM transfers").Scan(&count)
	return count, err
}

// PruneBefore removes transfers older than cutoff and returns how many
// were deleted.
func (db *DB) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM transfers WHERE timestamp < ?`, cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune transfers: %w", err)
	}
	return result.RowsAffected()
}
