package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesJSONToOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	log, err := New(Options{JSON: true, Debug: true, Output: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug("scoring candidate", CandidateFields("jdoe", "John")...)
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("expected a json log line, got %q: %v", data, err)
	}
	if entry["step"] != "scoring candidate" || entry["level"] != "debug" || entry[FieldSlug] != "jdoe" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewSkipsDebugByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	log, err := New(Options{Output: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	log.Debug("hidden")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no output, got %q", data)
	}
}
