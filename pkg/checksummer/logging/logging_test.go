package logging_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/checksummer/pkg/checksummer/logging"
)

// These tests share the package's global state and do not run in parallel.

func TestInit(t *testing.T) {
	validDir := t.TempDir()
	componentsDir := t.TempDir()
	invalidDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg:  logging.Config{Level: "info", Path: filepath.Join(validDir, "test.log")},
		},
		{
			name: "component overrides",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(componentsDir, "components.log"),
				Components: map[string]string{"engine": "debug", "store": "warn"},
			},
		},
		{
			name:    "invalid level",
			cfg:     logging.Config{Level: "loud", Path: filepath.Join(invalidDir, "x.log")},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(invalidDir, "y.log"),
				Components: map[string]string{"engine": "chatty"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if closeErr := logging.Close(); closeErr != nil {
					t.Errorf("Close() error = %v", closeErr)
				}
			}
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logger := logging.Get("engine")
	logger.Info("phase finished", "phase", "stat", "records", 3)
	logger.Debug("hidden at info level")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "phase finished") || !strings.Contains(content, "engine") {
		t.Errorf("log missing entry or component prefix: %q", content)
	}
	if strings.Contains(content, "hidden at info level") {
		t.Errorf("debug entry written at info level: %q", content)
	}
}

func TestComponentLevelOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "override.log")
	err := logging.Init(logging.Config{
		Level:      "warn",
		Path:       logPath,
		Components: map[string]string{"store": "debug"},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("store").Debug("store detail")
	logging.Get("engine").Info("engine detail")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "store detail") {
		t.Error("component override did not lower the level")
	}
	if strings.Contains(string(data), "engine detail") {
		t.Error("default level not applied to other components")
	}
}

func TestConsoleOutput(t *testing.T) {
	var console bytes.Buffer
	err := logging.Init(logging.Config{
		Level:        "info",
		Path:         filepath.Join(t.TempDir(), "console.log"),
		ConsoleLevel: "warn",
		Console:      &console,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() { _ = logging.Close() }()

	logger := logging.Get("engine").With("root", "/data")
	logger.Info("quiet on console")
	logger.Warn("checksum mismatch", "path", "a.txt")

	out := console.String()
	if !strings.Contains(out, "checksum mismatch") || !strings.Contains(out, "root=/data") {
		t.Errorf("console output = %q", out)
	}
	if strings.Contains(out, "quiet on console") {
		t.Errorf("info entry reached warn console: %q", out)
	}
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger := logging.Get("early")
	logger.Error("goes nowhere")
	if logger.Component() != "early" {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  logging.Level
		err   bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"verbose", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.input)
		if tt.err {
			if !errors.Is(err, logging.ErrInvalidLevel) {
				t.Errorf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.input, got, err)
		}
		if got.String() != strings.ToLower(strings.TrimSuffix(strings.ToLower(tt.input), "ing")) {
			t.Errorf("Level.String() = %q for %q", got.String(), tt.input)
		}
	}
}

func TestDefaultLogPath(t *testing.T) {
	path := logging.DefaultLogPath()
	if filepath.Base(path) != "checksummer.log" || filepath.Base(filepath.Dir(path)) != "checksummer" {
		t.Errorf("DefaultLogPath() = %q", path)
	}
}

func TestLoggerObtainedBeforeInit(t *testing.T) {
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger := logging.Get("store").With("db", "inventory.db")
	logger.Info("dropped before init")

	logPath := filepath.Join(t.TempDir(), "late.log")
	if err := logging.Init(logging.Config{Level: "info", Path: logPath}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	logger.Info("written after init")
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger.Info("dropped after close")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "written after init") || !strings.Contains(content, "db=inventory.db") {
		t.Errorf("log = %q", content)
	}
	if strings.Contains(content, "dropped") {
		t.Errorf("entry written while closed: %q", content)
	}
}
