package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

type ctxKey string

func ridFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey("rid")).(string); ok {
		return v
	}
	return ""
}

func TestContextHandlerInjectsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), ridFrom))

	ctx := context.WithValue(context.Background(), ctxKey("rid"), "req-9")
	logger.InfoContext(ctx, "hello")

	if !strings.Contains(buf.String(), "request_id=req-9") {
		t.Fatalf("line missing injected id: %s", buf.String())
	}
}

func TestContextHandlerKeepsExplicitID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), ridFrom))

	ctx := context.WithValue(context.Background(), ctxKey("rid"), "from-ctx")
	logger.InfoContext(ctx, "hello", FieldRequestID, "explicit")

	line := buf.String()
	if strings.Contains(line, "from-ctx") {
		t.Fatalf("context id should not double the explicit one: %s", line)
	}
	if !strings.Contains(line, "request_id=explicit") {
		t.Fatalf("explicit id missing: %s", line)
	}
}

func TestContextHandlerWithoutIDAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), ridFrom))

	logger.Info("plain")

	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected request_id: %s", buf.String())
	}
}
