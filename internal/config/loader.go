package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. ${ENV_VAR} references
// in the file are expanded from the process environment before parsing, so
// secrets stay out of the file itself.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	expanded := expandEnvVars(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// applyDefaults backfills zero values that yaml.Unmarshal may have cleared
// when a section was present but a field was not.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = def.Service.Listen
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.Service.LockPath == "" {
		cfg.Service.LockPath = def.Service.LockPath
	}
	if cfg.Webhook.SignatureHeader == "" {
		cfg.Webhook.SignatureHeader = def.Webhook.SignatureHeader
	}
	if cfg.Webhook.MaxBodySize <= 0 {
		cfg.Webhook.MaxBodySize = def.Webhook.MaxBodySize
	}
	if cfg.Orchestrator.MaxAttempts <= 0 {
		cfg.Orchestrator.MaxAttempts = def.Orchestrator.MaxAttempts
	}
	if cfg.Orchestrator.RetryDelay <= 0 {
		cfg.Orchestrator.RetryDelay = def.Orchestrator.RetryDelay
	}
	if cfg.Orchestrator.AttemptTimeout <= 0 {
		cfg.Orchestrator.AttemptTimeout = def.Orchestrator.AttemptTimeout
	}
	if cfg.Orchestrator.DefaultSite == "" {
		cfg.Orchestrator.DefaultSite = def.Orchestrator.DefaultSite
	}
	if cfg.Sites == nil {
		cfg.Sites = make(map[string]SiteConf)
	}
	if cfg.Notify.SMTP.Port == 0 {
		cfg.Notify.SMTP.Port = def.Notify.SMTP.Port
	}
	if cfg.Notify.SMTP.MessageStream == "" {
		cfg.Notify.SMTP.MessageStream = def.Notify.SMTP.MessageStream
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = def.Journal.Path
	}
	if cfg.Journal.Retention <= 0 {
		cfg.Journal.Retention = def.Journal.Retention
	}
}

func validate(cfg *Config) error {
	if cfg.Service.Listen == "" {
		return fmt.Errorf("service.listen is required")
	}
	if cfg.Orchestrator.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator.max_attempts must be at least 1")
	}
	for name, site := range cfg.Sites {
		if site.BaseURL == "" {
			return fmt.Errorf("sites.%s.base_url is required", name)
		}
	}
	if cfg.Notify.SMTP.Host != "" {
		if cfg.Notify.SMTP.From == "" || cfg.Notify.SMTP.To == "" {
			return fmt.Errorf("notify.smtp.from and notify.smtp.to are required when notify.smtp.host is set")
		}
	}
	return nil
}
