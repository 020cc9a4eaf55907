package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration for Helix.
type Config struct {
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// LLMConfig selects the model provider used for decisions and sequence
// generation. Fallbacks are tried in order when the primary fails with a
// retryable error.
type LLMConfig struct {
	Provider       string              `yaml:"provider,omitempty"` // "openai" | "claude" | "gemini" | "ollama"
	Model          string              `yaml:"model,omitempty"`
	APIKey         string              `yaml:"apiKey,omitempty"`
	Endpoint       string              `yaml:"endpoint,omitempty"` // base URL override (ollama, openai-compatible)
	Temperature    *float64            `yaml:"temperature,omitempty"`
	MaxTokens      int                 `yaml:"maxTokens,omitempty"`
	TimeoutSeconds int                 `yaml:"timeoutSeconds,omitempty"`
	Fallbacks      []LLMProviderConfig `yaml:"fallbacks,omitempty"`
}

// LLMProviderConfig is a secondary provider entry.
type LLMProviderConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Timeout returns the per-call model timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultLLMTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Temp returns the configured sampling temperature or the default.
func (c LLMConfig) Temp() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
}

// ListenAddr maps the bind mode to a host:port. Unknown modes fall back to
// loopback.
func (g GatewayConfig) ListenAddr() string {
	host := "127.0.0.1"
	switch g.Bind {
	case "lan":
		host = "0.0.0.0"
	case "custom":
		host = g.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(g.Port))
}

// Secrets returns pointers to every credential field in c.
func (c *Config) Secrets() []*string {
	out := []*string{&c.LLM.APIKey, &c.Gateway.Auth.Token, &c.Gateway.Auth.Password}
	for i := range c.LLM.Fallbacks {
		out = append(out, &c.LLM.Fallbacks[i].APIKey)
	}
	if c.Channels.IRC != nil {
		out = append(out, &c.Channels.IRC.Password)
	}
	return out
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "none" | "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// StoreConfig selects where finalized sequences are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // defaults to <base>/data/helix.db
}

// ChannelsConfig defines optional chat front-ends.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
	Allow    []string `yaml:"allow,omitempty"` // nicks allowed to drive sessions; empty allows everyone
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
