package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/td-engine/internal/logging"
)

func TestTracingConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*TracingConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*TracingConfig) {}},
		{name: "otlp", mutate: func(c *TracingConfig) { c.Exporter = "OTLP" }},
		{name: "unknown exporter", mutate: func(c *TracingConfig) { c.Exporter = "zipkin" }, wantErr: "exporter"},
		{name: "ratio above one", mutate: func(c *TracingConfig) { c.SampleRatio = 7 }, wantErr: "sample ratio"},
		{name: "negative ratio", mutate: func(c *TracingConfig) { c.SampleRatio = -0.1 }, wantErr: "sample ratio"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTracingConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tc.wantErr)
			}
		})
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "zipkin"
	if _, err := InitTracing(context.Background(), cfg, nil); err == nil {
		t.Fatalf("InitTracing accepted unknown exporter")
	}
}

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Writer = &buf

	shutdown, err := InitTracing(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), DefaultTracingConfig(), nil)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "Room.Start")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	if !strings.Contains(buf.String(), "Room.Start") {
		t.Fatalf("exported spans missing Room.Start:\n%s", buf.String())
	}
}
