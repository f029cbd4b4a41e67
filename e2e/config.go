package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// BROKER_GRPC_ADDR points at a running broker, the suite is skipped without it
	BrokerAddr string `envconfig:"BROKER_GRPC_ADDR"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	JWTIssuer  string `envconfig:"JWT_ISSUER" default:"chat-broker"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
