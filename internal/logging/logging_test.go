package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn)

	log.Debug("hidden %d", 1)
	log.Info("hidden %d", 2)
	log.Warn("orphan line for %s", "FV/1")
	log.Error("boom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("messages below threshold were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] orphan line for FV/1") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] boom") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"loud":    LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
