package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerWritesFileSink(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	l := slog.New(h)

	l.Info("cpu registered", "arch", "mips32")

	out := buf.String()
	if !strings.Contains(out, "cpu registered") || !strings.Contains(out, "mips32") {
		t.Errorf("file sink missing expected content: %q", out)
	}
	if !strings.Contains(out, "INFO:") {
		t.Errorf("file sink missing level: %q", out)
	}
}

func TestHandlerSetDebugTogglesStderrEcho(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	if h.debug {
		t.Fatalf("debug should start false")
	}
	h.SetDebug(true)
	if !h.debug {
		t.Errorf("SetDebug(true) did not take effect")
	}
}

func TestHandlerWithAttrsPreservesSink(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	withAttrs := h.WithAttrs([]slog.Attr{slog.String("cookie", "0")})
	l := slog.New(withAttrs)

	l.Info("execute")

	if !strings.Contains(buf.String(), "cookie") {
		t.Errorf("WithAttrs did not carry through to output: %q", buf.String())
	}
}
