package telemetry

import (
	"github.com/switchyard-io/switchyard/pkg/config"
)

// serviceName tags traces and profiles from this process.
const serviceName = "switchyard"

// Config holds the tracing configuration.
type Config struct {
	// Enabled indicates whether tracing is enabled
	Enabled bool

	// ServiceName is the name reported to the trace backend
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure indicates whether to use insecure connection (no TLS)
	Insecure bool

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64
}

// ProfilingConfig holds the Pyroscope continuous profiling configuration.
type ProfilingConfig struct {
	// Enabled controls whether profiling is enabled
	Enabled bool

	// ServiceName is the application name shown in Pyroscope
	ServiceName string

	// ServiceVersion is the application version
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040")
	Endpoint string

	// ProfileTypes selects the profiles to collect; see profileTypes for
	// the accepted names
	ProfileTypes []string
}

// FromAppConfig maps the application's telemetry section onto the tracing
// and profiling configs. The version tags both backends.
func FromAppConfig(cfg config.TelemetryConfig, version string) (Config, ProfilingConfig) {
	tracing := Config{
		Enabled:        cfg.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
	}
	profiling := ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	}
	return tracing, profiling
}
