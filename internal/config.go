package internal

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BusNone  = "none"
	BusRedis = "redis"
)

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	HTTPPort             int           `env:"HTTP_PORT,default=8080" validate:"min=1,max=65535"`
	GRPCPort             int           `env:"GRPC_PORT,default=9090" validate:"min=1,max=65535"`
	DebugPort            int           `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
	JWTSecret            string        `env:"JWT_SECRET,required=true" validate:"required,min=16"`
	JWTIssuer            string        `env:"JWT_ISSUER,default=chat-broker" validate:"required"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256" validate:"min=1"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT,default=15s" validate:"gt=0"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=30s" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`

	Bus               string        `env:"BUS,default=none" validate:"oneof=none redis"`
	RedisAddr         string        `env:"REDIS_ADDR" validate:"required_if=Bus redis"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB,default=0"`
	NodeID            string        `env:"NODE_ID"`
	BusTimeout        time.Duration `env:"BUS_TIMEOUT,default=2s" validate:"gt=0"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=5s" validate:"gt=0"`
	BusOutboxSize     int           `env:"BUS_OUTBOX_SIZE,default=1024" validate:"gt=0"`
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// Origins splits ALLOWED_ORIGINS on commas, empty means any origin.
func (c Config) Origins() []string {
	var res []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			res = append(res, origin)
		}
	}
	return res
}

// Node falls back to the host name so every replica gets a distinct presence key.
func (c Config) Node() string {
	if c.NodeID != "" {
		return c.NodeID
	}
	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}
	return "chat-broker"
}
