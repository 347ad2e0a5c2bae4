package logx

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLimitedWriterDropsAboveRate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	lw := newLimitedWriter(&buf, 1)

	line := []byte("{\"level\":\"info\"}\n")
	for i := 0; i < 10; i++ {
		if n, err := lw.Write(line); err != nil || n != len(line) {
			t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(line))
		}
	}
	// Burst of 1: exactly one line lands, the rest are counted as dropped.
	if got := bytes.Count(buf.Bytes(), []byte("\n")); got != 1 {
		t.Fatalf("lines written = %d, want 1", got)
	}
	if got := lw.dropped.Load(); got != 9 {
		t.Fatalf("dropped = %d, want 9", got)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	// Must not panic.
	l.Info("nothing to see", String("k", "v"))
	Nop().Error("also nothing", Err(nil))
}
