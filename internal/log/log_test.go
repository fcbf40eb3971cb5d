package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
		now = time.Now
	})
	return &buf
}

func TestLineFormat(t *testing.T) {
	buf := capture(t, LevelInfo)
	Info("plan applied", "plan", "Sequential Focus", "added", 3, "dangling")

	got := strings.TrimSpace(buf.String())
	want := `2024-01-01T00:00:00Z [INFO] plan applied plan="Sequential Focus" added=3`
	if got != want {
		t.Errorf("line = %q\nwant   %q", got, want)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "debug") || strings.Contains(out, "[INFO]") {
		t.Errorf("filtered levels leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn") || !strings.Contains(out, "err=boom") {
		t.Errorf("missing lines: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":  LevelDebug,
		" WARN ": LevelWarn,
		"error":  LevelError,
		"":       LevelInfo,
		"loud":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
