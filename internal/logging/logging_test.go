package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel accepted unknown level")
	}
}

func TestNewWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftwood.log")

	logger, closeFn := New(Options{Level: "info", Format: "json", FilePath: path})
	logger.Info("library started", "port", 8095)
	if err := closeFn(); err != nil {
		t.Fatalf("closing logger: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if record["msg"] != "library started" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["port"] != float64(8095) {
		t.Errorf("port = %v", record["port"])
	}
}

func TestNewLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftwood.log")

	logger, closeFn := New(Options{Level: "warn", Format: "json", FilePath: path})
	logger.Debug("hidden record")
	logger.Info("also hidden")
	logger.Warn("visible record")
	if err := closeFn(); err != nil {
		t.Fatalf("closing logger: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level records leaked: %s", out)
	}
	if !strings.Contains(out, "visible record") {
		t.Errorf("warn record missing: %s", out)
	}
}
