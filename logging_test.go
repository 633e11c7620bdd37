package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetupLoggingWritesDailyFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	var stdout bytes.Buffer
	logger, closer, err := setupLogging(&stdout, dir, now)
	require.NoError(t, err)

	logger.Info("Port opened", "port", "COM3")
	require.NoError(t, closer.Close())

	require.Contains(t, stdout.String(), "Port opened")
	data, err := os.ReadFile(filepath.Join(dir, "clipshare_20260314.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "port=COM3")
}

func TestSetupLoggingConsoleOnly(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout bytes.Buffer
	_, closer, err := setupLogging(&stdout, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	slog.Info("Hello")
	require.Contains(t, stdout.String(), "Hello")
}

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.Local)

	for _, name := range []string{
		"clipshare_20260301.log", // old
		"clipshare_20260310.log", // recent
		"clipshare_notadate.log",
		"other_20200101.log",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	pruneLogs(dir, now)

	require.NoFileExists(t, filepath.Join(dir, "clipshare_20260301.log"))
	require.FileExists(t, filepath.Join(dir, "clipshare_20260310.log"))
	require.FileExists(t, filepath.Join(dir, "clipshare_notadate.log"))
	require.FileExists(t, filepath.Join(dir, "other_20200101.log"))
}
