package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date           string `json:"date"`
	TotalTransfers int    `json:"total_transfers"`
	SentCount      int    `json:"sent_count"`
	ReceivedCount  int    `json:"received_count"`
	FailureCount   int    `json:"failure_count"`
	TotalChars     int    `json:"total_chars"`
}

// PortStats represents statistics grouped by port and direction
type PortStats struct {
	Port           string `json:"port"`
	Direction      string `json:"direction"`
	TotalTransfers int    `json:"total_transfers"`
	TotalChars     int    `json:"total_chars"`
	FailureCount   int    `json:"failure_count"`
}

// OverallStats represents overall statistics
type OverallStats struct {
	TotalTransfers int     `json:"total_transfers"`
	SentCount      int     `json:"sent_count"`
	ReceivedCount  int     `json:"received_count"`
	SuccessCount   int     `json:"success_count"`
	FailureCount   int     `json:"failure_count"`
	TotalChars     int64   `json:"total_chars"`
	TotalBytes     int64   `json:"total_bytes"`
	AvgChars       float64 `json:"avg_chars"`
}

// GetDailyStats retrieves statistics grouped by date for the last N days
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(timestamp) as date,
			COUNT(*) as total_transfers,
			SUM(CASE WHEN direction = 'sent' AND success = 1 THEN 1 ELSE 0 END) as sent_count,
			SUM(CASE WHEN direction = 'received' AND success = 1 THEN 1 ELSE 0 END) as received_count,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as failure_count,
			COALESCE(SUM(char_count), 0) as total_chars
		FROM transfers
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(timestamp)
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		err := rows.Scan(&s.Date, &s.TotalTransfers, &s.SentCount, &s.ReceivedCount, &s.FailureCount, &s.TotalChars)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetPortStats retrieves statistics grouped by port for the last N days
func (db *DB) GetPortStats(days int) ([]PortStats, error) {
	query := `
		SELECT
			port,
			direction,
			COUNT(*) as total_transfers,
			COALESCE(SUM(char_count), 0) as total_chars,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as failure_count
		FROM transfers
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
		GROUP BY port, direction
		ORDER BY total_transfers DESC, port
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query port stats: %w", err)
	}
	defer rows.Close()

	var stats []PortStats
	for rows.Next() {
		var s PortStats
		if err := rows.Scan(&s.Port, &s.Direction, &s.TotalTransfers, &s.TotalChars, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan port stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

const overallColumns = `
			COUNT(*) as total_transfers,
			COALESCE(SUM(CASE WHEN direction = 'sent' AND success = 1 THEN 1 ELSE 0 END), 0) as sent_count,
			COALESCE(SUM(CASE WHEN direction = 'received' AND success = 1 THEN 1 ELSE 0 END), 0) as received_count,
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count,
			COALESCE(SUM(char_count), 0) as total_chars,
			COALESCE(SUM(byte_count), 0) as total_bytes,
			COALESCE(AVG(char_count), 0) as avg_chars
`

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	query := `SELECT ` + overallColumns + `
		FROM transfers
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
	`

	stats, err := db.scanOverall(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}
	return stats, nil
}

// GetStatsForDateRange retrieves overall stats for a custom date range
func (db *DB) GetStatsForDateRange(startTime, endTime time.Time) (*OverallStats, error) {
	query := `SELECT ` + overallColumns + `
		FROM transfers
		WHERE timestamp >= ? AND timestamp <= ?
	`

	stats, err := db.scanOverall(query,
		startTime.UTC().Format(timestampLayout), endTime.UTC().Format(timestampLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query date range stats: %w", err)
	}
	return stats, nil
}

func (db *DB) scanOverall(query string, args ...any) (*OverallStats, error) {
	var stats OverallStats
	err := db.conn.QueryRow(query, args...).Scan(
		&stats.TotalTransfers,
		&stats.SentCount,
		&stats.ReceivedCount,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.TotalChars,
		&stats.TotalBytes,
		&stats.AvgChars,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
