package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsEachLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(infoHandler, debugHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to be enabled when any handler accepts debug")
	}

	slog.New(h).Debug("debug only")
	if infoBuf.Len() != 0 {
		t.Error("info handler should not receive debug messages")
	}
	if debugBuf.Len() == 0 {
		t.Error("debug handler should receive debug messages")
	}
}

func TestFanoutHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("handoff_id", "h-1")}).WithGroup("payload"))
	logger.Info("recorded", slog.Int("size", 12))

	for name, buf := range map[string]*bytes.Buffer{"first": &buf1, "second": &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"handoff_id":"h-1"`)) {
			t.Errorf("%s: missing handoff_id in %s", name, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"payload":{"size":12}`)) {
			t.Errorf("%s: missing grouped attr in %s", name, buf.String())
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	logger := TeeLogger(slog.New(slog.NewJSONHandler(&baseBuf, nil)), slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("teed message")

	if baseBuf.Len() == 0 || teeBuf.Len() == 0 {
		t.Fatalf("expected output in both buffers, base=%q tee=%q", baseBuf.String(), teeBuf.String())
	}

	var onlyTee bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&onlyTee, nil)).Info("no base")
	if onlyTee.Len() == 0 {
		t.Fatal("expected output with nil base")
	}
}
