package config

// TracingConfig holds OTLP trace export configuration.
//
// Spans are exported over OTLP HTTP to a local collector or agent which
// handles authentication and forwarding. See internal/app for setup.
type TracingConfig struct {
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment"`
	// ServiceName is the reported service name (default: finsight)
	ServiceName string `mapstructure:"service_name"`
}
