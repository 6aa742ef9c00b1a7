package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf}).With(String("session_id", "s-1"))

	ctx := ContextWithRequestID(context.Background(), "req-42")
	log.Info(ctx, "shot computed", Float64("range", 12.5), Bool("reversed", false), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":        "shot computed",
		"session_id": "s-1",
		"request_id": "req-42",
		"range":      12.5,
		"reversed":   false,
		"error":      "boom",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %v", k, rec[k], v)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestEnsureRequestIDIsStable(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatalf("expected generated id")
	}
	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || RequestIDFromContext(ctx2) != id {
		t.Fatalf("request id changed: %q -> %q", id, id2)
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("expected Noop logger")
	}
	base := Noop()
	stored := New(Config{})
	ctx := ContextWithLogger(context.Background(), stored)
	if FromContext(ctx, base) != stored {
		t.Fatalf("expected stored logger")
	}
}
