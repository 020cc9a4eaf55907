package config

import (
	"fmt"
	"time"
)

const (
	DefaultPort        = 4000
	DefaultProvider    = "openai"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
	DefaultLLMTimeout  = 60 * time.Second
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:       DefaultProvider,
			Model:          DefaultModel,
			MaxTokens:      DefaultMaxTokens,
			TimeoutSeconds: int(DefaultLLMTimeout / time.Second),
		},
		Gateway: GatewayConfig{
			Port: DefaultPort,
			Bind: "loopback",
			Auth: GatewayAuth{Mode: "none"},
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
