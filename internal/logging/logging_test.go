package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger_RoutesPackageCalls(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core).Sugar())
	t.Cleanup(func() { SetLogger(nil) })

	Infow("command committed", "action", "SELECT", "seq", 3)
	Debugw("push dropped", "err", "timeout")

	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}

	entry := logs.All()[0]
	if entry.Message != "command committed" {
		t.Errorf("message = %q, want %q", entry.Message, "command committed")
	}
	if got := entry.ContextMap()["action"]; got != "SELECT" {
		t.Errorf("action field = %v, want SELECT", got)
	}
}

func TestSetLogger_NilRestoresNoop(t *testing.T) {
	SetLogger(nil)

	if _, ok := L().(noopLogger); !ok {
		t.Fatalf("expected noop logger before Init, got %T", L())
	}

	Warnw("nothing listens")
	if err := Sync(); err != nil {
		t.Errorf("noop Sync() error = %v", err)
	}
}
