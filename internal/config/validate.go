package config

import (
	"fmt"
	"slices"
)

var (
	validProviders  = []string{"openai", "claude", "gemini", "ollama"}
	validBinds      = []string{"loopback", "lan", "custom"}
	validAuthModes  = []string{"none", "token", "password"}
	validDrivers    = []string{"sqlite", "memory"}
	validLogLevels  = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	validConsoleSty = []string{"pretty", "json"}
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// LLM validation
	issues = append(issues, validateProvider("llm", cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.APIKey)...)
	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("llm.temperature", "must be between 0 and 2, got %v", *t)
	}
	if cfg.LLM.TimeoutSeconds < 0 {
		add("llm.timeoutSeconds", "must not be negative, got %d", cfg.LLM.TimeoutSeconds)
	}
	for i, fb := range cfg.LLM.Fallbacks {
		issues = append(issues, validateProvider(fmt.Sprintf("llm.fallbacks[%d]", i), fb.Provider, fb.Model, fb.APIKey)...)
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	auth := cfg.Gateway.Auth
	switch {
	case auth.Mode != "" && !slices.Contains(validAuthModes, auth.Mode):
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, auth.Mode)
	case auth.Mode == "token" && auth.Token == "":
		add("gateway.auth.token", "required when auth mode is token")
	case auth.Mode == "password" && auth.Password == "":
		add("gateway.auth.password", "required when auth mode is password")
	}

	// Store validation
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		add("store.driver", "must be one of %v, got %q", validDrivers, cfg.Store.Driver)
	}

	// Logging validation
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleSty, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleSty, cfg.Logging.ConsoleStyle)
	}

	// IRC validation (only if configured)
	if cfg.Channels.IRC != nil {
		irc := cfg.Channels.IRC
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	return issues
}

func validateProvider(path, provider, model, apiKey string) []ValidationIssue {
	var issues []ValidationIssue
	if !slices.Contains(validProviders, provider) {
		return append(issues, ValidationIssue{
			Path:    path + ".provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, provider),
		})
	}
	if model == "" {
		issues = append(issues, ValidationIssue{Path: path + ".model", Message: "model is required"})
	}
	if provider != "ollama" && apiKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    path + ".apiKey",
			Message: fmt.Sprintf("required for provider %q", provider),
		})
	}
	return issues
}
