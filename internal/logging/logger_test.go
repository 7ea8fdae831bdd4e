package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vigil/internal/logging"
	"vigil/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleOutputIncludesComponentAndFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	logger.With(logging.String(logging.FieldComponent, "queue")).Info("run enqueued", logging.Int64("run_id", 3))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "queue: run enqueued") {
		t.Fatalf("expected component prefix in %q", out)
	}
	if !strings.Contains(out, "run_id=3") {
		t.Fatalf("expected run_id field in %q", out)
	}
}

func TestJSONOutputIncludesContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	ctx := services.WithRunID(context.Background(), 9)
	ctx = services.WithStage(ctx, "transcribing")
	ctx = services.WithRequestID(ctx, "corr-1")
	logging.WithContext(ctx, logger).Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	for _, fragment := range []string{`"run_id":9`, `"stage":"transcribing"`, `"correlation_id":"corr-1"`} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %s in output %q", fragment, out)
		}
	}
}

func TestWithContextNilLoggerIsSafe(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	logger.Info("should not panic")
}
