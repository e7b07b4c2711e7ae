package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ogurasousui/employee-registry/internal/platform/config"
	"github.com/sirupsen/logrus"
)

func TestNewWithWriter_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter returned error: %v", err)
	}

	logger.Info("hidden")
	logger.WithField("employee_id", 3).Warn("visible")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "visible" || line["level"] != "warning" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestNewWithWriter_InvalidLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	entry := logrus.NewEntry(logrus.New()).WithField("request-id", "abc")
	ctx := WithLogger(context.Background(), entry)

	if got := FromContext(ctx); got.Data["request-id"] != "abc" {
		t.Fatalf("expected stored entry, got %v", got.Data)
	}
	if got := FromContext(context.Background()); got == nil {
		t.Fatal("expected fallback entry")
	}
}
