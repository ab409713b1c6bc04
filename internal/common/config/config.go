package config

import (
	"os"
	"regexp"

	"github.com/orbcast/orbcast/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// EventGatewayConfig is the top-level configuration of the event gateway
	EventGatewayConfig struct {
		Server  ServerConfig  `yaml:"server"`
		Logger  LoggerConfig  `yaml:"logger"`
		Session SessionConfig `yaml:"session"`
		Bus     BusConfig     `yaml:"bus"`
		Metrics MetricsConfig `yaml:"metrics"`
	}

	// ServerConfig configures the operational HTTP server
	ServerConfig struct {
		Port int `yaml:"port"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// SessionConfig represents the session connection store configuration
	SessionConfig struct {
		Type  string             `yaml:"type"`  // "memory" or "redis"
		Redis SessionRedisConfig `yaml:"redis"` // Redis configuration
	}

	// SessionRedisConfig represents the Redis configuration for the session store
	SessionRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Topic    string `yaml:"topic"`
		Prefix   string `yaml:"prefix"`
	}

	// BusConfig represents the cross-node event bus configuration
	BusConfig struct {
		Role  string         `yaml:"role"` // publisher, subscriber, or both
		Type  string         `yaml:"type"` // "channel" or "redis"
		Redis BusRedisConfig `yaml:"redis"`
	}

	// BusRedisConfig represents the Redis configuration for the event bus
	BusRedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, cluster, or sentinel
		Addr        string `yaml:"addr"`
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Stream      string `yaml:"stream"`
	}

	// MetricsConfig represents the Prometheus metrics configuration
	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// BusRole represents the role of a bus participant
type BusRole string

const (
	// RolePublisher represents a bus participant that can only publish events
	RolePublisher BusRole = "publisher"
	// RoleSubscriber represents a bus participant that can only receive events
	RoleSubscriber BusRole = "subscriber"
	// RoleBoth represents a bus participant that can both publish and receive events
	RoleBoth BusRole = "both"
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*EventGatewayConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg EventGatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	setDefaults(&cfg)

	return &cfg, cfgPath, nil
}

func setDefaults(cfg *EventGatewayConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Session.Type == "" {
		cfg.Session.Type = "memory"
	}
	if cfg.Bus.Type == "" {
		cfg.Bus.Type = "channel"
	}
	if cfg.Bus.Role == "" {
		cfg.Bus.Role = string(RoleBoth)
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "orbcast"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
