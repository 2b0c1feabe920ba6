package observability

import (
	"context"
	"testing"
	"time"
)

func TestInitTracingNoEndpoint(t *testing.T) {
	tp, err := InitTracing(context.Background(), &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp == nil {
		t.Fatal("expected a no-op tracer provider")
	}
	if tp.Tracer() == nil {
		t.Error("expected a usable tracer")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInitTracingNilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if tp == nil {
		t.Fatal("expected provider from defaults")
	}
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.ServiceName != "brainstormer" {
		t.Errorf("service name = %q", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("sample rate = %v", cfg.SampleRate)
	}
}

func TestStartLLMSpan(t *testing.T) {
	ctx, span := StartLLMSpan(context.Background(), "anthropic", "claude-sonnet-4-5")
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	RecordLLMMetrics(span, 100, 50, 250*time.Millisecond)
	span.End()
}
