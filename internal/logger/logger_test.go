package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if parseLevel(lvl) == nil {
			t.Errorf("parseLevel(%q) = nil", lvl)
		}
	}
	if parseLevel("verbose") != nil {
		t.Error("parseLevel(verbose) should be nil")
	}
}

func TestNewWithFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teslahub.log")

	log := NewWithFile("info", false, FileOptions{Path: path})
	log.With(String("component", "test")).Info("session swept", Int("removed", 3))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"msg":"session swept"`, `"removed":3`, `"component":"test"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %s, got %s", want, out)
		}
	}
}

func TestNopDoesNotPanic(t *testing.T) {
	log := NewNop()
	log.Info("ignored", Bool("ok", true), Int64("version", 7))
	log.Debugf("ignored %d", 1)
}
