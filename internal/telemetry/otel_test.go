package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestInitStdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "tutor-test",
		SamplerRatio: 1,
		Writer:       &buf,
	}, nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "tutor.gateway.complete")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "tutor.gateway.complete") {
		t.Fatalf("expected span in exporter output, got %q", buf.String())
	}
}

func TestClampRatio(t *testing.T) {
	t.Parallel()

	for in, want := range map[float64]float64{-1: 0, 0.25: 0.25, 3: 1} {
		if got := clampRatio(in); got != want {
			t.Errorf("clampRatio(%v) = %v, want %v", in, got, want)
		}
	}
}
