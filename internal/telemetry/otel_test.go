package telemetry

import (
	"testing"

	"github.com/qrdesk/qrstudio/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestCollectorEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "otel-collector:4317", want: "otel-collector:4317"},
		{in: "http://otel-collector:4317", want: "otel-collector:4317"},
		{in: " https://otel.example.com:443/ ", want: "otel.example.com:443"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collectorEndpoint(tt.in), tt.in)
	}
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(0).Description())
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOnSampler", sampler(7).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestSetupTracingDisabled(t *testing.T) {
	cfg := &config.Config{Telemetry: config.TelemetryCfg{Enabled: true}}
	tp, err := SetupTracing(cfg)
	require.NoError(t, err)
	assert.Nil(t, tp)

	cfg.Telemetry = config.TelemetryCfg{OtlpEndpoint: "otel:4317"}
	tp, err = SetupTracing(cfg)
	require.NoError(t, err)
	assert.Nil(t, tp)
}

func TestServiceAttributes(t *testing.T) {
	cfg := &config.Config{
		App:       config.AppCfg{Name: "qrstudio", Env: "release"},
		PrintPack: config.PrintPackCfg{Concurrency: 4},
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range serviceAttributes(cfg) {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "qrstudio", attrs["service.name"].AsString())
	assert.Equal(t, "release", attrs["environment"].AsString())
	assert.Equal(t, int64(4), attrs["qr.print_pack.concurrency"].AsInt64())
	assert.True(t, attrs["qr.dev_owner_mode"].AsBool())
	assert.NotEmpty(t, attrs["service.version"].AsString())
}
