// Package logging configures the global zerolog logger with a console writer and a rotating file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/saltyorg/easierlife/internal/config"
)

const (
	DefaultLogFilePath = "easierlife.log"
	DefaultMaxSizeMB   = 50
	DefaultMaxBackups  = 5
	DefaultMaxAgeDays  = 30
	DefaultCompress    = true
)

// Setting keys read from the settings store
const (
	KeyMaxSizeMB  = "log.max_size_mb"
	KeyMaxBackups = "log.max_backups"
	KeyMaxAgeDays = "log.max_age_days"
	KeyCompress   = "log.compress"
)

const timeFormat = "2006-01-02 15:04:05"

// Rotation describes how the log file is rotated
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotation returns the rotation used when nothing is configured
func DefaultRotation() Rotation {
	return Rotation{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   DefaultCompress,
	}
}

// RotationFrom reads rotation settings, ignoring out-of-range values
func RotationFrom(loader *config.Loader) Rotation {
	r := DefaultRotation()
	if loader == nil {
		return r
	}
	if v := loader.Int(KeyMaxSizeMB, DefaultMaxSizeMB); v > 0 {
		r.MaxSizeMB = v
	}
	if v := loader.Int(KeyMaxBackups, DefaultMaxBackups); v >= 0 {
		r.MaxBackups = v
	}
	if v := loader.Int(KeyMaxAgeDays, DefaultMaxAgeDays); v >= 0 {
		r.MaxAgeDays = v
	}
	r.Compress = loader.Bool(KeyCompress, DefaultCompress)
	return r
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Apply sets the global level and routes log output to the console and a rotating file.
// An empty logFilePath uses DefaultLogFilePath in the working directory.
func Apply(level string, loader *config.Loader, logFilePath string) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()

	if logFilePath == "" {
		logFilePath = DefaultLogFilePath
	}
	if err := ensureLogDir(logFilePath); err != nil {
		log.Error().Err(err).Str("path", logFilePath).Msg("Failed to prepare log directory; logging to console only")
		return
	}

	file := NewFileWriter(logFilePath, RotationFrom(loader))
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
}

// NewFileWriter returns an uncoloured console-format writer backed by a rotating file
func NewFileWriter(path string, r Rotation) io.Writer {
	return zerolog.ConsoleWriter{
		Out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    r.MaxSizeMB,
			MaxBackups: r.MaxBackups,
			MaxAge:     r.MaxAgeDays,
			Compress:   r.Compress,
		},
		TimeFormat: timeFormat,
		NoColor:    true,
	}
}

// FilePathForDB returns a log file path that lives alongside the database file.
func FilePathForDB(dbPath string) string {
	if dbPath == "" {
		return DefaultLogFilePath
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return filepath.Join(filepath.Dir(dbPath), DefaultLogFilePath)
	}
	return filepath.Join(filepath.Dir(abs), DefaultLogFilePath)
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
