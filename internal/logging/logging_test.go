package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for in, want := range tests {
		logger, err := New(in)
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if !logger.Core().Enabled(want) {
			t.Errorf("New(%q): level %v not enabled", in, want)
		}
		if want > zapcore.DebugLevel && logger.Core().Enabled(want-1) {
			t.Errorf("New(%q): level %v unexpectedly enabled", in, want-1)
		}
	}
}
