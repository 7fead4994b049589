package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mymiscarriage/apiserver/config"
)

func TestNewWithWriter_TextLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "text"})
	ctx := context.Background()

	log.Info(ctx, "hidden", "a", 1)
	log.Warn(ctx, "shown", "b", 2)

	out := buf.String()
	if strings.Contains(out, "msg=hidden") {
		t.Fatalf("info line should be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "msg=shown") || !strings.Contains(out, "b=2") {
		t.Fatalf("expected warn line in output:\n%s", out)
	}
}

func TestNewWithWriter_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"})

	log.With("component", "auth").Debug(context.Background(), "hello", "k", "v")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{"level": "DEBUG", "msg": "hello", "component": "auth", "k": "v"} {
		if line[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, line[key])
		}
	}
}

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got.String() != "INFO" {
		t.Fatalf("expected INFO, got %s", got)
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop()
	ctx := context.TODO()
	log.Debug(ctx, "ok")
	log.Info(ctx, "ok")
	log.Warn(ctx, "ok")
	log.Error(ctx, "ok")
	log.With("a", 1).Info(ctx, "ok")
}
