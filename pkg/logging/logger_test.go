package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
	if ParseLevel("WARN") != slog.LevelWarn {
		t.Fatalf("expected warn level")
	}
	if ParseLevel("loud") != slog.LevelInfo {
		t.Fatalf("expected info fallback")
	}
}

func TestComponentLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	log := NewComponentLogger(NewLogger(&buf, slog.LevelInfo, "json"), "dispatch")
	log.Info("segment_generated", "index", 0)
	if !strings.Contains(buf.String(), `"component":"dispatch"`) {
		t.Fatalf("expected component attr in json output: %s", buf.String())
	}

	buf.Reset()
	log = NewComponentLogger(NewLogger(&buf, slog.LevelInfo, "text"), "cache")
	log.Debug("hidden")
	log.Info("hit")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "component=cache") {
		t.Fatalf("unexpected text output: %s", out)
	}
}
