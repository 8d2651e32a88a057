package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Re-initialization replaces the global handler
	err = Init(WithFormat(FormatJSON))
	if err != nil {
		t.Fatalf("failed to re-initialize logger: %v", err)
	}

	logger = Get()
	if logger == nil {
		t.Fatal("logger is nil after re-initialization")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	err := Init(WithFormat(FormatJSON), WithWriter(&buf), WithCaller(false))
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "frame decoded", String("stage", "pose"), Int("frame", 42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "frame decoded" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["stage"] != "pose" {
		t.Errorf("unexpected stage field: %v", entry["stage"])
	}
	if entry["frame"] != float64(42) {
		t.Errorf("unexpected frame field: %v", entry["frame"])
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	err := Init(WithWriter(&buf), WithCaller(false))
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	bound := Get().With(String("video", "start01.mp4"))
	bound.Info(ctx, "processing")
	bound.Info(ctx, "done")

	out := buf.String()
	if strings.Count(out, "video=start01.mp4") != 2 {
		t.Errorf("bound field missing from entries:\n%s", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	err := Init(WithWriter(&buf), WithCaller(false))
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	namedLogger := Named("tracker")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "started", String("kind", "csrt"))

	if !strings.Contains(buf.String(), "tracker.kind=csrt") {
		t.Errorf("group prefix missing:\n%s", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithCaller(false)); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	Get().Info(ctx, "suppressed")
	Get().Warn(ctx, "visible")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info entry leaked through warn level:\n%s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn entry missing:\n%s", out)
	}

	if err := SetLevelString("nope"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetLevelString(""); err != nil {
		t.Errorf("empty level should default to info: %v", err)
	}

	// restore for other tests
	if err := SetLevelString("info"); err != nil {
		t.Fatalf("failed to restore level: %v", err)
	}
}
