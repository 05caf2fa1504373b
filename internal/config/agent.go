package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey indicates that no model credentials were found in the
// config file or the environment. Agent jobs cannot run without them, so the
// daemon treats this as fatal at startup.
var ErrMissingAPIKey = fmt.Errorf("missing API key: set anthropic.api_key in config.yaml or ANTHROPIC_API_KEY")

// AgentConfig holds model credentials and runner settings, loaded from
// <home>/config.yaml with environment overrides.
type AgentConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// RunnerCommand selects the external agent CLI. Empty means the stub
	// runner, which produces deterministic output without model calls.
	RunnerCommand string   `yaml:"runner_command"`
	RunnerArgs    []string `yaml:"runner_args"`
}

// NotifyConfig configures outbound notifications for terminal job outcomes.
type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackChannel    string `yaml:"slack_channel"`
	SlackUsername   string `yaml:"slack_username"`
}

type configFile struct {
	Anthropic     AgentConfig  `yaml:"anthropic"`
	Notifications NotifyConfig `yaml:"notifications"`
}

// LoadAgentConfig reads <home>/config.yaml and applies ANTHROPIC_* env
// overrides. A missing file is fine; env vars alone can supply credentials.
func LoadAgentConfig(home string) (AgentConfig, error) {
	var f configFile
	b, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	if err == nil {
		if err := yaml.Unmarshal(b, &f); err != nil {
			return AgentConfig{}, fmt.Errorf("parse config.yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return AgentConfig{}, fmt.Errorf("read config.yaml: %w", err)
	}

	cfg := f.Anthropic
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" {
		cfg.Model = v
	}
	return cfg, nil
}

// LoadNotifyConfig reads the notifications section of <home>/config.yaml.
// TOPICLAB_SLACK_WEBHOOK_URL overrides the file.
func LoadNotifyConfig(home string) (NotifyConfig, error) {
	var f configFile
	b, err := os.ReadFile(filepath.Join(home, "config.yaml"))
	if err == nil {
		if err := yaml.Unmarshal(b, &f); err != nil {
			return NotifyConfig{}, fmt.Errorf("parse config.yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return NotifyConfig{}, fmt.Errorf("read config.yaml: %w", err)
	}
	cfg := f.Notifications
	if v := os.Getenv("TOPICLAB_SLACK_WEBHOOK_URL"); v != "" {
		cfg.SlackWebhookURL = v
	}
	return cfg, nil
}

// Validate reports whether the config is sufficient to run agent jobs.
func (c AgentConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Env returns the environment variables handed to agent runners.
func (c AgentConfig) Env() map[string]string {
	env := map[string]string{"ANTHROPIC_API_KEY": c.APIKey}
	if c.BaseURL != "" {
		env["ANTHROPIC_BASE_URL"] = c.BaseURL
	}
	if c.Model != "" {
		env["ANTHROPIC_MODEL"] = c.Model
	}
	return env
}
