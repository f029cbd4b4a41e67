package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BrokerURL string `envconfig:"CHAT_BROKER_URL" default:"http://localhost:8080"`
	Token     string `envconfig:"CHAT_TOKEN"`
	// JWT_SECRET is only needed by the token command
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"chat-broker"`
	Colours   bool   `envconfig:"CHAT_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
