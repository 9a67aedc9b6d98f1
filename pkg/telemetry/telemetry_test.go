package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestConfigureSlogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "warn", "text")

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("info record leaked past warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn record missing")
	}
}

func TestConfigureSlogJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "json")
	logger.Info("hello", "agent", "ada")
	if !strings.Contains(buf.String(), `"agent":"ada"`) {
		t.Errorf("expected json output, got %q", buf.String())
	}
}

func TestInitNoneExporter(t *testing.T) {
	shutdown, err := InitWithConfig("orchestra-test", "v0.0.0", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestInitUnknownExporter(t *testing.T) {
	if _, err := InitWithConfig("orchestra-test", "v0.0.0", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestRoundMetricsNilSafe(t *testing.T) {
	var m *RoundMetrics
	ctx := context.Background()
	m.RecordTurn(ctx, "a", "task", "ok", 10, 0.1)
	m.RecordDenial(ctx, "tokens")
	m.RecordScore(ctx, "a", 5)
}
