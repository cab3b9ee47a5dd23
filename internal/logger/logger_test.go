package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Init(Options{Output: &buf})

	log.Debug("hidden")
	slog.Info("quest created", "quest_id", "q1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}

	var entry map[string]any
	err := json.Unmarshal([]byte(lines[0]), &entry)
	if err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["msg"] != "quest created" || entry["quest_id"] != "q1" || entry["service"] != "questboard" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestInitDevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Development: true, Output: &buf})

	slog.Debug("recompute", "changed", 2)

	if !strings.Contains(buf.String(), "msg=recompute") || !strings.Contains(buf.String(), "changed=2") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
