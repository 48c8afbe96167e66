package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("lendingd", "test", WithOutput(&buf), WithLevel(slog.LevelDebug))
	logger.Debug("reserve added", slog.String("asset", "lp1xyz"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"message":  "reserve added",
		"severity": "DEBUG",
		"service":  "lendingd",
		"env":      "test",
		"asset":    "lp1xyz",
	} {
		if got, _ := line[key].(string); got != want {
			t.Fatalf("%s: got %q want %q", key, got, want)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in %v", line)
	}
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lendingd.log")
	var buf bytes.Buffer
	logger := Setup("lendingd", "", WithOutput(&buf), WithFile(FileOptions{Path: path, MaxSizeMB: 1}))
	logger.Info("started")

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(contents), `"message":"started"`) {
		t.Fatalf("log file missing entry: %s", contents)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn || ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unexpected level parsing")
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("jwt_secret", "s3cr3t"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected secret to be masked, got %q", attr.Value.String())
	}
	if attr := MaskField("asset", "lp1abc"); attr.Value.String() != "lp1abc" {
		t.Fatalf("expected allowlisted key to pass through")
	}
	if attr := MaskField("dsn", ""); attr.Value.String() != "" {
		t.Fatalf("expected empty value to pass through")
	}
}

func TestMaskDSN(t *testing.T) {
	got := MaskDSN("postgres://lend:hunter2@db:5432/journal?sslmode=disable")
	if strings.Contains(got, "hunter2") || !strings.Contains(got, "db:5432") {
		t.Fatalf("unexpected masked dsn %q", got)
	}
	if MaskDSN("host=db password=hunter2") != RedactedValue {
		t.Fatalf("expected key/value dsn to be fully masked")
	}
}
