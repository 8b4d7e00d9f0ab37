package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agencyrun/agency/pkg/agency"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != InfoLevel {
		t.Errorf("expected Level to be InfoLevel, got %v", cfg.Level)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected Output to be os.Stderr")
	}
	if cfg.Pretty != false {
		t.Errorf("expected Pretty to be false")
	}
	if cfg.TimeFormat != time.RFC3339 {
		t.Errorf("expected TimeFormat to be RFC3339, got %s", cfg.TimeFormat)
	}
	if cfg.LogToFile != false {
		t.Errorf("expected LogToFile to be false")
	}
	if cfg.LogDir != "/tmp" {
		t.Errorf("expected LogDir to be /tmp, got %s", cfg.LogDir)
	}
	if cfg.SessionFiles != false {
		t.Errorf("expected SessionFiles to be false")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"  DEBUG  ", DebugLevel},
		{"INFO", InfoLevel},
		{"info", InfoLevel},
		{"WARN", WarnLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"error", ErrorLevel},
		{"FATAL", FatalLevel},
		{"fatal", FatalLevel},
		{"unknown", InfoLevel},
		{"", InfoLevel},
		{"INVALID", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestInitWithDefaults(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got %s", output)
	}
	if !strings.Contains(output, "info") {
		t.Errorf("expected output to contain 'info' level, got %s", output)
	}
}

func TestInitWithPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, Pretty: true})

	Info().Msg("pretty test")

	output := buf.String()
	if !strings.Contains(output, "pretty test") {
		t.Errorf("expected output to contain 'pretty test', got %s", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, Output: &buf})

	Debug().Msg("debug message")
	Info().Msg("info message")
	Warn().Msg("warn message")
	Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("debug message should not appear when level is Warn")
	}
	if strings.Contains(output, "info message") {
		t.Error("info message should not appear when level is Warn")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should appear when level is Warn")
	}
	if !strings.Contains(output, "error message") {
		t.Error("error message should appear when level is Warn")
	}
}

func TestLogToFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	Init(Config{
		Level:     InfoLevel,
		Output:    &bytes.Buffer{},
		LogToFile: true,
		LogDir:    tempDir,
	})
	defer Close()

	Info().Msg("file log test")

	logPath := GetLogFilePath()
	if logPath == "" {
		t.Fatal("expected log file path to be set")
	}
	if !strings.HasPrefix(logPath, tempDir) {
		t.Errorf("log file path %s should be in %s", logPath, tempDir)
	}

	fileName := filepath.Base(logPath)
	if !strings.HasPrefix(fileName, "agencyd-") || !strings.HasSuffix(fileName, ".log") {
		t.Errorf("unexpected log file name: %s", fileName)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "file log test") {
		t.Errorf("log file should contain 'file log test', got: %s", string(content))
	}
}

func TestClose(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: tempDir})

	logPath := GetLogFilePath()
	if logPath == "" {
		t.Fatal("expected log file path before close")
	}

	Close()

	if GetLogFilePath() != "" {
		t.Error("expected empty log file path after close")
	}
}

func TestGetLogFilePathWhenNotLoggingToFile(t *testing.T) {
	Close() // Ensure no previous log file
	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: false})

	if GetLogFilePath() != "" {
		t.Error("expected empty log file path when not logging to file")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	childLogger := With().Str("component", "test").Logger()
	childLogger.Info().Msg("with context")

	output := buf.String()
	if !strings.Contains(output, "component") {
		t.Errorf("expected output to contain 'component' field, got %s", output)
	}
	if !strings.Contains(output, "test") {
		t.Errorf("expected output to contain 'test' value, got %s", output)
	}
}

func TestLogWithFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	Info().
		Str("key", "value").
		Int("count", 42).
		Bool("enabled", true).
		Msg("message with fields")

	output := buf.String()
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("expected output to contain key field, got %s", output)
	}
	if !strings.Contains(output, `"count":42`) {
		t.Errorf("expected output to contain count field, got %s", output)
	}
	if !strings.Contains(output, `"enabled":true`) {
		t.Errorf("expected output to contain enabled field, got %s", output)
	}
}

func TestInitWithNilOutput(t *testing.T) {
	// Should default to os.Stderr without panic.
	Init(Config{Level: InfoLevel, Output: nil})
}

func TestInitWithEmptyTimeFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, TimeFormat: ""})
	Info().Msg("time format test")

	output := buf.String()
	if !strings.Contains(output, "time format test") {
		t.Errorf("expected output to contain message, got %s", output)
	}
}

func TestInitWithEmptyLogDir(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, LogToFile: true, LogDir: ""})
	defer Close()

	logPath := GetLogFilePath()
	if logPath != "" && !strings.HasPrefix(logPath, "/tmp") {
		t.Errorf("expected log path to start with /tmp, got %s", logPath)
	}
}

func TestReinitClosePreviousLogFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: tempDir})
	firstLogPath := GetLogFilePath()

	time.Sleep(time.Second)

	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: tempDir})
	defer Close()

	secondLogPath := GetLogFilePath()

	if firstLogPath == secondLogPath {
		t.Error("expected different log paths on reinit")
	}
	if _, err := os.Stat(firstLogPath); os.IsNotExist(err) {
		t.Errorf("first log file should still exist: %s", firstLogPath)
	}
	if _, err := os.Stat(secondLogPath); os.IsNotExist(err) {
		t.Errorf("second log file should exist: %s", secondLogPath)
	}
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, Output: &buf})

	Debug().Msg("debug test")

	output := buf.String()
	if !strings.Contains(output, "debug test") {
		t.Errorf("expected debug message in output, got %s", output)
	}
}

func TestErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	Error().Err(os.ErrNotExist).Msg("error test")

	output := buf.String()
	if !strings.Contains(output, "error test") {
		t.Errorf("expected error message in output, got %s", output)
	}
	if !strings.Contains(output, "file does not exist") {
		t.Errorf("expected error details in output, got %s", output)
	}
}

func TestForSessionTagsSessionField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	sessionLogger := ForSession("ses_123")
	sessionLogger.Info().Msg("session scoped")

	output := buf.String()
	if !strings.Contains(output, `"session":"ses_123"`) {
		t.Errorf("expected session field in output, got %s", output)
	}
}

func TestForSessionRoutesToItsOwnFileWhenSessionFilesEnabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	Init(Config{
		Level:        InfoLevel,
		Output:       &bytes.Buffer{},
		LogToFile:    true,
		LogDir:       tempDir,
		SessionFiles: true,
	})
	defer Close()

	sesA := ForSession("ses_a")
	sesA.Info().Msg("a's line")
	sesB := ForSession("ses_b")
	sesB.Info().Msg("b's line")
	// A second call for the same session must reuse the same file rather
	// than truncate or duplicate it.
	sesA2 := ForSession("ses_a")
	sesA2.Info().Msg("a's second line")

	aContent, err := os.ReadFile(filepath.Join(tempDir, "sessions", "ses_a.log"))
	if err != nil {
		t.Fatalf("expected ses_a log file: %v", err)
	}
	if !strings.Contains(string(aContent), "a's line") || !strings.Contains(string(aContent), "a's second line") {
		t.Errorf("expected both of ses_a's lines in its file, got: %s", aContent)
	}
	if strings.Contains(string(aContent), "b's line") {
		t.Errorf("ses_a's file should not contain ses_b's line, got: %s", aContent)
	}

	bContent, err := os.ReadFile(filepath.Join(tempDir, "sessions", "ses_b.log"))
	if err != nil {
		t.Fatalf("expected ses_b log file: %v", err)
	}
	if !strings.Contains(string(bContent), "b's line") {
		t.Errorf("expected ses_b's line in its file, got: %s", bContent)
	}
}

func TestForSessionWithoutSessionFilesStaysOnSharedSink(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: tempDir})
	defer Close()

	sharedLogger := ForSession("ses_a")
	sharedLogger.Info().Msg("shared sink line")

	if _, err := os.Stat(filepath.Join(tempDir, "sessions")); !os.IsNotExist(err) {
		t.Errorf("expected no sessions directory when SessionFiles is off")
	}
}

func TestForIntentTagsSessionIntentAndKind(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	intentLogger := ForIntent("ses_123", "1.0", "call_tool", agency.PriorityNormal)
	intentLogger.Info().Msg("intent scoped")

	output := buf.String()
	for _, want := range []string{`"session":"ses_123"`, `"intent":"1.0"`, `"kind":"call_tool"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got %s", want, output)
		}
	}
}

func TestForIntentRaisesFloorForBackgroundPriority(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	l := ForIntent("ses_123", "1.0", "memory_write", agency.PriorityBackground)
	l.Info().Msg("routine background line")

	if strings.Contains(buf.String(), "routine background line") {
		t.Error("background-priority Info lines should be filtered out at the global Info level")
	}

	l.Warn().Msg("background trouble")
	if !strings.Contains(buf.String(), "background trouble") {
		t.Error("expected Warn-and-above to still surface for background-priority work")
	}
}

func TestForIntentKeepsGlobalFloorForNormalPriority(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	normalLogger := ForIntent("ses_123", "1.0", "call_tool", agency.PriorityNormal)
	normalLogger.Info().Msg("normal priority line")

	if !strings.Contains(buf.String(), "normal priority line") {
		t.Error("expected Normal-priority intents to log at the global Info level")
	}
}

func TestCloseClearsSessionFiles(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}, LogToFile: true, LogDir: tempDir, SessionFiles: true})
	closeLogger := ForSession("ses_a")
	closeLogger.Info().Msg("line")
	Close()

	sessionMu.Lock()
	n := len(sessionFiles)
	sessionMu.Unlock()
	if n != 0 {
		t.Errorf("expected Close to clear open session files, found %d", n)
	}
}
