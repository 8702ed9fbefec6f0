package log

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"dev", "", zerolog.DebugLevel},
		{"prod", "", zerolog.InfoLevel},
		{"prod", "WARN", zerolog.WarnLevel},
		{"dev", "nonsense", zerolog.DebugLevel},
	}
	for _, tt := range tests {
		if got := NewLogger(tt.env, tt.level).GetLevel(); got != tt.want {
			t.Fatalf("NewLogger(%q, %q) level = %v, want %v", tt.env, tt.level, got, tt.want)
		}
	}
}
