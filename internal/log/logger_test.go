package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
)

func TestSetup(t *testing.T) {
	logger = nil
	once = sync.Once{}

	Setup("DEBUG")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}

func TestGetWithoutSetupFallsBackToDefault(t *testing.T) {
	logger = nil
	once = sync.Once{}

	if Get() != slog.Default() {
		t.Fatal("Get should return the process default logger before Setup")
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	logger = slog.New(h)
	defer func() { logger = nil }()

	WithComponent("registry").Info("hello")
	WithHook("my_hook").Info("dispatch")
	WithPlugin("p1").Info("call")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d", len(lines))
	}

	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if rec["component"] != "registry" {
		t.Errorf("expected component=registry, got %v", rec["component"])
	}

	if err := json.Unmarshal(lines[1], &rec); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if rec["hook"] != "my_hook" {
		t.Errorf("expected hook=my_hook, got %v", rec["hook"])
	}

	if err := json.Unmarshal(lines[2], &rec); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if rec["plugin"] != "p1" {
		t.Errorf("expected plugin=p1, got %v", rec["plugin"])
	}
}
