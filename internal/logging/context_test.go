package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", FlowID(ctx))
	assert.Equal(t, "", StepID(ctx))
	assert.Equal(t, "", Tool(ctx))

	ctx = WithFlowID(ctx, "checkout")
	ctx = WithStepID(ctx, "step-1")
	ctx = WithTool(ctx, "flowgraph.layout")

	assert.Equal(t, "checkout", FlowID(ctx))
	assert.Equal(t, "step-1", StepID(ctx))
	assert.Equal(t, "flowgraph.layout", Tool(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	ctx = WithFlowID(ctx, "checkout")
	ctx = WithStepID(ctx, "step-x")
	ctx = WithTool(ctx, "validate")

	LogWith(ctx, logger).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "flow_id=checkout")
	assert.Contains(t, output, "step_id=step-x")
	assert.Contains(t, output, "tool=validate")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithFlowID(context.Background(), "only-flow")
	LogWith(ctx, logger).Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "flow_id=only-flow")
	assert.NotContains(t, output, "step_id=")
	assert.NotContains(t, output, "tool=")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithTool(WithFlowID(context.Background(), "login"), "graph")
	logger.InfoContext(ctx, "converted", "nodes", 4)

	output := buf.String()
	assert.Contains(t, output, "flow_id=login")
	assert.Contains(t, output, "tool=graph")
	assert.Contains(t, output, "nodes=4")
}

func TestCorrelationHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner)).With("component", "engine").WithGroup("layout")

	logger.InfoContext(WithStepID(context.Background(), "s1"), "arranged", "count", 2)

	output := buf.String()
	assert.Contains(t, output, "component=engine")
	assert.Contains(t, output, "layout.count=2")
	assert.Contains(t, output, "layout.step_id=s1")
}

func TestCorrelationHandlerNoContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	logger.Info("plain")

	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "flow_id")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
