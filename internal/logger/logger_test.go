package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileWriterPathResolution(t *testing.T) {
	dir := t.TempDir()

	c := Config{Dir: dir}
	w := c.FileWriter()
	if w == nil {
		t.Fatal("expected writer when Dir is set")
	}
	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	if _, err := os.Stat(filepath.Join(dir, "davbridge.log")); err != nil {
		t.Fatalf("expected davbridge.log in dir: %v", err)
	}

	explicit := filepath.Join(dir, "custom.log")
	c = Config{Dir: dir, Path: explicit}
	w = c.FileWriter()
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	if _, err := os.Stat(explicit); err != nil {
		t.Fatalf("explicit path must win over Dir: %v", err)
	}
}

func TestFileWriterDisabled(t *testing.T) {
	if (Config{}).FileWriter() != nil {
		t.Fatal("no Dir/Path must disable file logging")
	}
}

func TestLevelParsing(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (Config{Level: in}).level(); got != want {
			t.Errorf("level(%q) = %v want %v", in, got, want)
		}
	}
}

func TestColorTextHandlerAddsLevelTag(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{})
	l := slog.New(h)
	l.Warn("disk almost full")
	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "disk almost full") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "\\x1b[33m") && !strings.Contains(out, "\033[33m") {
		t.Fatalf("expected yellow color code in output: %q", out)
	}
}

func TestMultiHandlerFanout(t *testing.T) {
	var a, b bytes.Buffer
	m := multiHandler{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}
	l := slog.New(m)
	l.Info("fanout", "k", "v")
	if !strings.Contains(a.String(), "fanout") {
		t.Fatalf("text handler missed record: %q", a.String())
	}
	if !strings.Contains(b.String(), `"fanout"`) {
		t.Fatalf("json handler missed record: %q", b.String())
	}
	if !m.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("multiHandler should be enabled at info")
	}
}
