package telemetry

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

func TestSetupTracingDisabled(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	for _, exporter := range []string{"", "none", " NONE "} {
		shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: exporter}, logger)
		if err != nil {
			t.Fatalf("exporter %q: %v", exporter, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}

func TestSetupTracingRejectsBadConfig(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "jaeger"}, logger); err == nil {
		t.Fatal("expected unsupported exporter error")
	}
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, logger); err == nil {
		t.Fatal("expected missing endpoint error")
	}
}
