package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "sutnist-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "service", "noop")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}

func TestTrackQuery_Observes(t *testing.T) {
	before := testutil.CollectAndCount(DatabaseQueryLatency)
	done := TrackQuery("select", "observability_test")
	done()
	assert.Equal(t, before+1, testutil.CollectAndCount(DatabaseQueryLatency))
}

func TestModerationDecisions_Counter(t *testing.T) {
	before := testutil.ToFloat64(ModerationDecisions.WithLabelValues("approved"))
	ModerationDecisions.WithLabelValues("approved").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ModerationDecisions.WithLabelValues("approved")))
}

func TestInitTracing_ExporterErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  TracingConfig
	}{
		{"unknown exporter", TracingConfig{Enabled: true, Exporter: "jaeger"}},
		{"otlp without endpoint", TracingConfig{Enabled: true, Exporter: ExporterOTLP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InitTracing(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", newSampler(0).Description())
	assert.Equal(t, "AlwaysOnSampler", newSampler(1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}
