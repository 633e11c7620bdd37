package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	logPrefix    = "clipshare_"
	logSuffix    = ".log"
	logRetention = 7 * 24 * time.Hour
)

// setupLogging installs the default logger. With dir set, records also go
// to a daily file in dir and files past the retention window are removed.
// The returned closer releases the log file.
func setupLogging(stdout io.Writer, dir string, now time.Time) (*slog.Logger, io.Closer, error) {
	out := stdout
	var closer io.Closer = nopCloser{}

	if dir != "" {
		pruneLogs(dir, now)

		name := filepath.Join(dir, logFileName(now))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(stdout, f)
		closer = f
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

func logFileName(t time.Time) string {
	return logPrefix + t.Format("20060102") + logSuffix
}

// pruneLogs removes daily log files older than the retention window.
// Files that don't follow the naming scheme are left alone.
func pruneLogs(dir string, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := now.Add(-logRetention)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}
		day, err := time.ParseInLocation("20060102", strings.TrimSuffix(strings.TrimPrefix(name, logPrefix), logSuffix), now.Location())
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
