package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGetTransfers(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	first := &Transfer{Timestamp: now.Add(-time.Minute), Direction: "sent", Port: "COM3", Chars: 5, Bytes: 5, Preview: "hello", Success: true}
	second := &Transfer{Timestamp: now, Direction: "received", Port: "COM4", Chars: 2, Bytes: 6, Preview: "日本", Success: true}
	failed := &Transfer{Timestamp: now, Direction: "sent", Port: "COM3", Success: false, ErrorMessage: "transmit failed: boom"}

	for _, tr := range []*Transfer{first, second, failed} {
		require.NoError(t, db.SaveTransfer(tr))
		require.NotZero(t, tr.ID)
	}

	count, err := db.GetTransferCount()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	got, err := db.GetTransfers(10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, failed.ID, got[0].ID)
	require.Equal(t, "transmit failed: boom", got[0].ErrorMessage)
	require.Equal(t, second.ID, got[1].ID)
	require.Equal(t, "日本", got[1].Preview)
	require.True(t, got[1].Timestamp.Equal(now))
	require.Equal(t, first.ID, got[2].ID)
	require.Empty(t, got[2].ErrorMessage)

	page, err := db.GetTransfers(1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, first.ID, page[0].ID)
}

func TestSaveTransferDefaultsTimestamp(t *testing.T) {
	db := openTestDB(t)

	tr := &Transfer{Direction: "received", Port: "COM4", Success: true}
	require.NoError(t, db.SaveTransfer(tr))
	require.WithinDuration(t, time.Now(), tr.Timestamp, time.Second)
}

func TestDeleteTransfer(t *testing.T) {
	db := openTestDB(t)

	tr := &Transfer{Direction: "sent", Port: "COM3", Success: true}
	require.NoError(t, db.SaveTransfer(tr))

	require.NoError(t, db.DeleteTransfer(tr.ID))
	require.ErrorIs(t, db.DeleteTransfer(tr.ID), ErrTransferNotFound)
}

func TestPruneBefore(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, db.SaveTransfer(&Transfer{Timestamp: now.AddDate(0, 0, -40), Direction: "sent", Port: "COM3", Success: true}))
	require.NoError(t, db.SaveTransfer(&Transfer{Timestamp: now, Direction: "sent", Port: "COM3", Success: true}))

	n, err := db.PruneBefore(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	count, err := db.GetTransferCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	records := []*Transfer{
		{Timestamp: now, Direction: "sent", Port: "COM3", Chars: 10, Bytes: 12, Success: true},
		{Timestamp: now, Direction: "sent", Port: "COM3", Chars: 20, Bytes: 20, Success: true},
		{Timestamp: now, Direction: "received", Port: "COM4", Chars: 30, Bytes: 40, Success: true},
		{Timestamp: now, Direction: "sent", Port: "COM3", Success: false, ErrorMessage: "x"},
		{Timestamp: now.AddDate(0, 0, -60), Direction: "received", Port: "COM4", Chars: 99, Bytes: 99, Success: true},
	}
	for _, r := range records {
		require.NoError(t, db.SaveTransfer(r))
	}

	overall, err := db.GetOverallStats(7)
	require.NoError(t, err)
	require.Equal(t, 4, overall.TotalTransfers)
	require.Equal(t, 2, overall.SentCount)
	require.Equal(t, 1, overall.ReceivedCount)
	require.Equal(t, 3, overall.SuccessCount)
	require.Equal(t, 1, overall.FailureCount)
	require.EqualValues(t, 60, overall.TotalChars)
	require.EqualValues(t, 72, overall.TotalBytes)
	require.InDelta(t, 15.0, overall.AvgChars, 0.001)

	daily, err := db.GetDailyStats(7)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	require.Equal(t, now.UTC().Format("2006-01-02"), daily[0].Date)
	require.Equal(t, 4, daily[0].TotalTransfers)
	require.Equal(t, 2, daily[0].SentCount)
	require.Equal(t, 1, daily[0].ReceivedCount)
	require.Equal(t, 1, daily[0].FailureCount)
	require.Equal(t, 60, daily[0].TotalChars)

	ports, err := db.GetPortStats(7)
	require.NoError(t, err)
	require.Equal(t, []PortStats{
		{Port: "COM3", Direction: "sent", TotalTransfers: 3, TotalChars: 30, FailureCount: 1},
		{Port: "COM4", Direction: "received", TotalTransfers: 1, TotalChars: 30, FailureCount: 0},
	}, ports)

	ranged, err := db.GetStatsForDateRange(now.AddDate(0, 0, -90), now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Equal(t, 1, ranged.TotalTransfers)
	require.EqualValues(t, 99, ranged.TotalChars)
}

func TestStatsEmpty(t *testing.T) {
	db := openTestDB(t)

	overall, err := db.GetOverallStats(30)
	require.NoError(t, err)
	require.Zero(t, overall.TotalTransfers)
	require.Zero(t, overall.AvgChars)

	daily, err := db.GetDailyStats(30)
	require.NoError(t, err)
	require.Empty(t, daily)
}
