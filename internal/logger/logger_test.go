package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo).Named("pass")

	log.Info(context.Background(), "profiles published", Int("count", 3), Error(errors.New("boom")))
	log.Debug(context.Background(), "hidden")

	out := buf.String()
	if !strings.Contains(out, "profiles published") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "component=pass") {
		t.Errorf("expected component attribute, got %q", out)
	}
	if !strings.Contains(out, "count=3") {
		t.Errorf("expected count field, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected non-nil logger")
	}
	// Must not panic
	OrNop(nil).Error(context.Background(), "discarded")
}
