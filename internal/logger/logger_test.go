package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"color-quiz-service/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"WARN":    zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"":        zap.InfoLevel,
		"verbose": zap.InfoLevel,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("%q: expected %v, got %v", raw, want, got)
		}
	}
}

func TestNewWritesRotatedFile(t *testing.T) {
	var cfg config.Config
	cfg.Log.File = filepath.Join(t.TempDir(), "app.log")

	log := New(cfg)
	log.Info("attempt created", zap.String("attemptId", "a1"))
	_ = log.Sync()

	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"attemptId":"a1"`) {
		t.Fatalf("expected structured entry, got %s", data)
	}
}
