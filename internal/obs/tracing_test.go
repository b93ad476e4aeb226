package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracerDisabledExporters(t *testing.T) {
	for _, exporter := range []string{"none", " NOOP ", "off"} {
		shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: exporter})
		require.NoError(t, err, exporter)
		require.NoError(t, shutdown(context.Background()))
	}
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported tracing exporter: zipkin")
}

func TestOTLPOptionsSkipBlankEndpoint(t *testing.T) {
	require.Empty(t, otlpOptions("  "))
	require.Len(t, otlpOptions("http://collector:4318/v1/traces"), 1)
}
