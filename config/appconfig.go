package config

import (
	"strings"

	"github.com/spf13/viper"
)

type IngressConfig struct {
	Backends string `mapstructure:"backends"`
}

// BackendPaths splits the comma-separated BACKENDS value into socket paths.
// A leading unix:// scheme is tolerated.
func (c *IngressConfig) BackendPaths() []string {
	parts := strings.Split(c.Backends, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimPrefix(p, "unix://"))
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

type GatewayConfig struct {
	ListenSocket  string `mapstructure:"listen_socket"`
	PublishSocket string `mapstructure:"publish_socket"`
}

type WorkerConfig struct {
	ListenPath           string `mapstructure:"listen_path"`
	NumWorkers           int    `mapstructure:"num_workers"`
	DefaultProcessorURL  string `mapstructure:"default_processor_url"`
	FallbackProcessorURL string `mapstructure:"fallback_processor_url"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	JaegerURL   string `mapstructure:"jaeger_url"`
}

type AppConfig struct {
	Ingress   *IngressConfig   `mapstructure:"ingress"`
	Gateway   *GatewayConfig   `mapstructure:"gateway"`
	Worker    *WorkerConfig    `mapstructure:"worker"`
	Postgres  *PostgresConfig  `mapstructure:"postgres"`
	Telemetry *TelemetryConfig `mapstructure:"telemetry"`
}

func LoadConfig() (*AppConfig, error) {

	viper.AutomaticEnv()

	viper.SetDefault("ingress.backends", "/tmp/gateway-1.sock")
	viper.SetDefault("gateway.listen_socket", "/tmp/gateway-1.sock")
	viper.SetDefault("gateway.publish_socket", "/tmp/payments-stream.sock")
	viper.SetDefault("worker.listen_path", "/tmp/payments-stream.sock")
	viper.SetDefault("worker.num_workers", 16)
	viper.SetDefault("worker.default_processor_url", "http://localhost:8001")
	viper.SetDefault("worker.fallback_processor_url", "http://localhost:8002")
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "payrelay")
	viper.SetDefault("telemetry.jaeger_url", "http://jaeger:14268/api/traces")

	_ = viper.BindEnv("ingress.backends", "BACKENDS")
	_ = viper.BindEnv("gateway.listen_socket", "GATEWAY_LISTEN_SOCKET")
	_ = viper.BindEnv("gateway.publish_socket", "GATEWAY_PUBLISH_SOCKET")
	_ = viper.BindEnv("worker.listen_path", "LISTEN_PATH")
	_ = viper.BindEnv("worker.num_workers", "NUM_WORKERS")
	_ = viper.BindEnv("worker.default_processor_url", "DEFAULT_PROCESSOR_URL")
	_ = viper.BindEnv("worker.fallback_processor_url", "FALLBACK_PROCESSOR_URL")
	_ = viper.BindEnv("postgres.url", "POSTGRES_URL")
	_ = viper.BindEnv("telemetry.enabled", "TELEMETRY_ENABLED")
	_ = viper.BindEnv("telemetry.service_name", "TELEMETRY_SERVICE_NAME")
	_ = viper.BindEnv("telemetry.jaeger_url", "JAEGER_URL")

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
