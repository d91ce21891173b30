package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDomainFields(t *testing.T) {
	if f := Algorithm("pagerank"); f.Key != "algorithm" || f.Value != "pagerank" {
		t.Errorf("Algorithm() = %+v", f)
	}
	if f := Iteration(3); f.Key != "iteration" || f.Value != 3 {
		t.Errorf("Iteration() = %+v", f)
	}
	if f := HierarchyLevel(2); f.Key != "level" || f.Value != 2 {
		t.Errorf("HierarchyLevel() = %+v", f)
	}
	if f := Duration("timeout", 5*time.Second); f.Value != "5s" {
		t.Errorf("Duration() = %+v", f)
	}
	if f := Error(nil); f.Value != nil {
		t.Errorf("Error(nil) = %+v", f)
	}
	if f := Error(errors.New("boom")); f.Value != "boom" {
		t.Errorf("Error() = %+v", f)
	}
}

func TestJSONLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, DebugLevel)

	logger.Info("graph loaded", Count(12), Component("loader"))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}

	if entry.Level != "INFO" {
		t.Errorf("Level = %v, want INFO", entry.Level)
	}
	if entry.Message != "graph loaded" {
		t.Errorf("Message = %v, want 'graph loaded'", entry.Message)
	}
	if entry.Fields["count"] != float64(12) {
		t.Errorf("Fields[count] = %v, want 12", entry.Fields["count"])
	}
	if entry.Fields["component"] != "loader" {
		t.Errorf("Fields[component] = %v, want loader", entry.Fields["component"])
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(lines))
	}

	for i, want := range []string{"WARN", "ERROR"} {
		var entry LogEntry
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("Failed to unmarshal entry %d: %v", i, err)
		}
		if entry.Level != want {
			t.Errorf("entry %d level = %v, want %v", i, entry.Level, want)
		}
	}
}

func TestJSONLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)
	child := logger.With(Algorithm("louvain"), RunID("r-1"))

	logger.SetLevel(ErrorLevel)
	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("child should follow parent level, got output %q", buf.String())
	}

	child.Error("run failed", HierarchyLevel(1))

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if entry.Fields["algorithm"] != "louvain" || entry.Fields["run_id"] != "r-1" {
		t.Errorf("preset fields missing: %v", entry.Fields)
	}
	if entry.Fields["level"] != float64(1) {
		t.Errorf("level field = %v, want 1", entry.Fields["level"])
	}
}

func TestJSONLogger_ConcurrentChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		child := logger.With(Chunk(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				child.Info("chunk scanned")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 200 {
		t.Fatalf("Expected 200 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("interleaved output %q: %v", line, err)
		}
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Error("OrNop(nil) should return NopLogger")
	}
	l := NewJSONLogger(&bytes.Buffer{}, InfoLevel)
	if OrNop(l) != Logger(l) {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	op := StartTimer(logger, "load nodes", Component("loader"))
	elapsed := op.End(Count(3))
	if elapsed < 0 {
		t.Errorf("negative elapsed %v", elapsed)
	}

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if entry.Fields["latency"] == nil {
		t.Error("latency field missing")
	}
	if entry.Fields["count"] != float64(3) {
		t.Errorf("count = %v, want 3", entry.Fields["count"])
	}

	buf.Reset()
	StartTimer(logger, "load relationships").EndError(errors.New("scan failed"))
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if entry.Level != "ERROR" || entry.Fields["error"] != "scan failed" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestGlobalHelpers(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultLogger(NewJSONLogger(&buf, DebugLevel))
	defer SetDefaultLogger(NewJSONLogger(&bytes.Buffer{}, InfoLevel))

	Info("info msg")
	Warn("warn msg")
	ErrorLog("error msg")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("Expected 3 log entries, got %d", len(lines))
	}
}
