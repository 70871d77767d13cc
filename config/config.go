// Package config loads the monitor configuration from a single YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvEndpoint overrides poller.endpoint at runtime. It exists so a deployment
// can point the daemon at a different backend without editing the config file.
const EnvEndpoint = "LUCAMON_ENDPOINT"

// Config represents the complete monitor configuration
type Config struct {
	Poller    PollerConfig    `yaml:"poller"`
	Console   ConsoleConfig   `yaml:"console"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	History   HistoryConfig   `yaml:"history"`
	TickLog   TickLogConfig   `yaml:"tick_log"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PollerConfig contains the status poller settings
type PollerConfig struct {
	Endpoint          string `yaml:"endpoint"`
	IntervalSec       int    `yaml:"interval_seconds"`
	RequestTimeoutSec int    `yaml:"request_timeout_seconds"`
}

// ConsoleConfig contains the line-command console server settings
type ConsoleConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`
	WelcomeMessage string `yaml:"welcome_message"`
}

// DashboardConfig contains terminal dashboard settings
type DashboardConfig struct {
	Enabled   bool `yaml:"enabled"`
	Force     bool `yaml:"force"`
	TargetFPS int  `yaml:"target_fps"`
}

// HistoryConfig contains the snapshot history store settings
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// TickLogConfig contains the SQLite poll-outcome log settings
type TickLogConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
}

// MQTTConfig contains the snapshot republisher settings
type MQTTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Broker  string `yaml:"broker"`
	Port    int    `yaml:"port"`
	Topic   string `yaml:"topic"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load loads configuration from a YAML file and applies defaults and
// environment overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	if strings.TrimSpace(cfg.Poller.Endpoint) == "" {
		return nil, fmt.Errorf("poller.endpoint is empty (set it in %s or via %s)", filename, EnvEndpoint)
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Poller.IntervalSec <= 0 {
		c.Poller.IntervalSec = 5
	}
	if c.Poller.RequestTimeoutSec <= 0 {
		c.Poller.RequestTimeoutSec = 5
	}
	if c.Console.Port <= 0 {
		c.Console.Port = 7310
	}
	if c.Console.MaxConnections <= 0 {
		c.Console.MaxConnections = 50
	}
	if c.Console.WelcomeMessage == "" {
		c.Console.WelcomeMessage = "lucamon console. Type HELP for commands."
	}
	if c.Dashboard.TargetFPS <= 0 {
		c.Dashboard.TargetFPS = 10
	}
	if c.History.Path == "" {
		c.History.Path = "data/history"
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = 7
	}
	if c.TickLog.Path == "" {
		c.TickLog.Path = "data/ticklog"
	}
	if c.TickLog.QueueSize <= 0 {
		c.TickLog.QueueSize = 1024
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "lucamon/status"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "data/logs"
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 7
	}
}

func (c *Config) applyEnv() {
	if endpoint := strings.TrimSpace(os.Getenv(EnvEndpoint)); endpoint != "" {
		c.Poller.Endpoint = endpoint
	}
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("Endpoint: %s (every %ds, timeout %ds)\n",
		c.Poller.Endpoint, c.Poller.IntervalSec, c.Poller.RequestTimeoutSec)
	if c.Console.Enabled {
		fmt.Printf("Console: port %d (max %d connections)\n", c.Console.Port, c.Console.MaxConnections)
	}
	if c.History.Enabled {
		fmt.Printf("History: %s (retention %dd)\n", c.History.Path, c.History.RetentionDays)
	}
	if c.TickLog.Enabled {
		fmt.Printf("Tick log: %s\n", c.TickLog.Path)
	}
	if c.MQTT.Enabled {
		fmt.Printf("MQTT: %s:%d (topic: %s)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.Topic)
	}
}
