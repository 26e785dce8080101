package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitTracerDisabled(t *testing.T) {
	for _, exporter := range []string{"none", "NOOP"} {
		tr, err := InitTracer(context.Background(), TracingConfig{Exporter: exporter})
		require.NoError(t, err)
		require.False(t, tr.Enabled)
		require.NoError(t, tr.Shutdown(context.Background()))
	}
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported tracing exporter")
}
