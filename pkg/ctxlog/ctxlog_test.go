package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello k=v") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestFromContextMissing(t *testing.T) {
	if got := FromContext(context.Background()); got != Discard() {
		t.Errorf("FromContext(empty) = %v, want the discard logger", got)
	}
}
