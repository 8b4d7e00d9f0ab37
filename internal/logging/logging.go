// Package logging provides structured logging using zerolog, with
// session-scoped file routing and priority-aware leveling layered on top
// for this module's multi-session, nested-worker agent core.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agencyrun/agency/pkg/agency"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// logFile holds the current shared log file if logging to file.
var logFile *os.File

// consoleWriter is the sink every session-scoped logger also writes
// through, so session files augment rather than replace the shared stream.
var consoleWriter io.Writer = os.Stderr

// sessionDir is where per-session log files live when Config.SessionFiles
// is set; empty when the feature is off.
var sessionDir string

var (
	sessionMu    sync.Mutex
	sessionFiles = map[string]*os.File{}
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output.
	Pretty bool
	// TimeFormat specifies the time format. Defaults to RFC3339.
	TimeFormat string
	// LogToFile enables logging to a timestamped file in LogDir.
	LogToFile bool
	// LogDir is the directory for log files. Defaults to /tmp.
	LogDir string
	// SessionFiles, when true alongside LogToFile, gives every session its
	// own log file under LogDir/sessions/ in addition to the shared file,
	// so one session's (or one worker's) lines can be read in isolation
	// instead of interleaved with every other concurrent session.
	SessionFiles bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:        InfoLevel,
		Output:       os.Stderr,
		Pretty:       false,
		TimeFormat:   time.RFC3339,
		LogToFile:    false,
		LogDir:       "/tmp",
		SessionFiles: false,
	}
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "/tmp"
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var writers []io.Writer

	// Console output.
	var console io.Writer = cfg.Output
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: cfg.TimeFormat,
		}
	}
	consoleWriter = console
	writers = append(writers, console)

	// Shared file output.
	closeSessionFiles()
	sessionDir = ""
	if cfg.LogToFile {
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}

		timestamp := time.Now().Format("20060102-150405")
		logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("agencyd-%s.log", timestamp))

		var err error
		logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writers = append(writers, logFile)
		}

		if cfg.SessionFiles {
			sessionDir = filepath.Join(cfg.LogDir, "sessions")
			os.MkdirAll(sessionDir, 0755)
		}
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	Logger = zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// GetLogFilePath returns the current shared log file path, or empty string
// if not logging to file.
func GetLogFilePath() string {
	if logFile != nil {
		return logFile.Name()
	}
	return ""
}

// Close closes the shared log file and every open per-session file.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	closeSessionFiles()
}

func closeSessionFiles() {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	for id, f := range sessionFiles {
		f.Close()
		delete(sessionFiles, id)
	}
}

// ParseLevel parses a log level string (case-insensitive).
// Supported values: DEBUG, INFO, WARN, ERROR, FATAL.
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts a new info level log message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a new warn level log message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts a new error level log message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal starts a new fatal level log message.
// Calling Msg or Send on the returned event will call os.Exit(1).
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// With creates a child logger with the given fields.
func With() zerolog.Context {
	return Logger.With()
}

// ForSession returns a logger tagged with sessionID. When Init was called
// with SessionFiles set, this also routes the logger's output through a
// dedicated file for that session (lazily opened, reused on subsequent
// calls), so a long-lived chat session's or a nested worker's lines can be
// followed on their own instead of interleaved with every concurrent
// session in the shared file (spec §4.4 worker subsystem: sessions and
// their workers run concurrently and persist independently).
func ForSession(sessionID string) zerolog.Logger {
	ctx := Logger.With().Str("session", sessionID)
	w := sessionWriter(sessionID)
	if w == nil {
		return ctx.Logger()
	}
	return zerolog.New(zerolog.MultiLevelWriter(consoleWriter, w)).
		Level(Logger.GetLevel()).
		With().
		Timestamp().
		Str("session", sessionID).
		Logger()
}

func sessionWriter(sessionID string) io.Writer {
	if sessionDir == "" || sessionID == "" {
		return nil
	}
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if f, ok := sessionFiles[sessionID]; ok {
		return f
	}
	path := filepath.Join(sessionDir, fmt.Sprintf("%s.log", sessionID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	sessionFiles[sessionID] = f
	return f
}

// ForIntent returns a logger correlating one intent's dispatch/result log
// lines, sharing ForSession's sink. Background-priority intents (fire-and-
// forget memory writes, best-effort telemetry) have their floor raised to
// Warn, so routine chatter logged at Info doesn't compete with user-facing
// Normal/Critical output at the default Info level and only a genuine
// problem in background work surfaces (spec §5: "Telemetry events are
// best-effort and unordered with respect to control flow").
func ForIntent(sessionID, intentID, kind string, priority agency.Priority) zerolog.Logger {
	l := ForSession(sessionID).With().Str("intent", intentID).Str("kind", kind).Logger()
	if priority == agency.PriorityBackground {
		l = l.Level(zerolog.WarnLevel)
	}
	return l
}

// init sets up a default logger so the package is usable without explicit initialization.
func init() {
	Init(DefaultConfig())
}
