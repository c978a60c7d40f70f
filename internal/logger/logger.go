// Package logger provides a dual-output logger that writes to both stderr
// and a timestamped log file inside the install directory. Console output is
// human readable and starts at info level; the file holds every zerolog JSON
// line, debug included.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// logsSubdir lives next to the install record.
var logsSubdir = filepath.Join(".es-install", "logs")

// Logger writes to both stderr and a log file simultaneously.
type Logger struct {
	zl   zerolog.Logger
	file *os.File
}

// New creates a logger that writes to stderr and to
// <installDir>/.es-install/logs/install-<ts>.log.
func New(installDir string) (*Logger, error) {
	return newLogger(installDir, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func newLogger(installDir string, console io.Writer) (*Logger, error) {
	logsDir := filepath.Join(installDir, logsSubdir)
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}

	ts := time.Now().Format("20060102-150405")
	logPath := filepath.Join(logsDir, fmt.Sprintf("install-%s.log", ts))

	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	w := zerolog.MultiLevelWriter(
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  zerolog.InfoLevel,
		},
		f,
	)
	return &Logger{
		zl:   zerolog.New(w).With().Timestamp().Logger(),
		file: f,
	}, nil
}

// NewDiscard returns a logger that drops everything (used when there is no
// install directory yet, and in tests).
func NewDiscard() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// LogPath returns the path of the current log file, or empty string if discarded.
func (l *Logger) LogPath() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Write implements io.Writer; each call becomes one log event.
func (l *Logger) Write(p []byte) (n int, err error) {
	return l.zl.Write(p)
}

// Printf writes a formatted info line to the log.
func (l *Logger) Printf(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

// Debugf writes a formatted line to the log file only.
func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

// Warnf writes a formatted warning to the log.
func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogsDir returns the directory holding install logs for installDir.
func LogsDir(installDir string) string {
	return filepath.Join(installDir, logsSubdir)
}

// LatestLogPath returns the most recent install log under installDir, or ""
// when there is none.
func LatestLogPath(installDir string) string {
	logsDir := LogsDir(installDir)
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return ""
	}
	// install-<ts> names sort chronologically and ReadDir sorts by name.
	for i := len(entries) - 1; i >= 0; i-- {
		if e := entries[i]; !e.IsDir() && filepath.Ext(e.Name()) == ".log" {
			return filepath.Join(logsDir, e.Name())
		}
	}
	return ""
}
