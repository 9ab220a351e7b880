package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config interface {
	EnvConfig
	AzureConfig
	StoreConfig
	CorsConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Azure
	Store
	Cors
	Security
}

// Load reads the process environment into a Config. Call LoadEnv first when .env
// files or AWS Secrets Manager should contribute values.
func Load() (Config, error) {
	var v values
	if err := envconfig.Process("", &v); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	return mainConfig{
		EnvVars:  EnvVars{v: v},
		Azure:    Azure{v: v},
		Store:    Store{v: v},
		Cors:     Cors{v: v},
		Security: Security{v: v},
	}, nil
}
