package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinyrange/clearloop/internal/window"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Backend != window.Native {
		t.Fatalf("expected backend %q, got %q", window.Native, cfg.Backend)
	}
	if cfg.GLInfo {
		t.Fatalf("expected gl_info off by default")
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"backend: glfw",
		"log_level: debug",
		"log_format: json",
		"gl_info: true",
		"",
	}, "\n"))

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != "glfw" {
		t.Fatalf("expected backend glfw, got %q", cfg.Backend)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("expected debug/json, got %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.GLInfo {
		t.Fatalf("expected gl_info to be true")
	}
}

func TestLoadFromPath_PartialKeepsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(writeConfig(t, "gl_info: true\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != window.Native || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("expected untouched defaults, got %+v", cfg)
	}
}

func TestLoadFromPath_RejectsUnknownKeys(t *testing.T) {
	_, err := LoadFromPath(writeConfig(t, "width: 1920\n"))
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "width") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"log_level":  "log_level: loud\n",
		"log_format": "log_format: xml\n",
		"backend":    "backend: \"\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, contents))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("expected error mentioning %q, got %v", name, err)
			}
		})
	}
}

func TestLoadFromPath_MalformedYAML(t *testing.T) {
	if _, err := LoadFromPath(writeConfig(t, "backend: [native\n")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		cfg := &Config{LogLevel: in}
		got, err := cfg.SlogLevel()
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "frames", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record above warn, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", lines[0], err)
	}
	if rec["msg"] != "kept" {
		t.Fatalf("expected msg kept, got %v", rec["msg"])
	}
}
