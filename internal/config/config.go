// Package config holds the server configuration, loaded from SMPIT_*
// environment variables with flag overrides applied on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full server configuration.
type Config struct {
	Host        string
	Port        int
	EnableHTTPS bool
	CertFile    string
	KeyFile     string

	AccessKeyID     string
	SecretAccessKey string
	Region          string

	DBPath string
	// DBKey is accepted for compatibility but the database is stored
	// unencrypted.
	DBKey string

	LogLevel        string
	CleanupInterval time.Duration
}

// Default configuration values.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 4566
	DefaultAccessKeyID     = "smpit"
	DefaultSecretAccessKey = "smpit"
	DefaultRegion          = "us-east-1"
	DefaultDBPath          = "smpit.db"
	DefaultLogLevel        = "info"
	DefaultCleanupSeconds  = 3600
)

// LoadFromEnv builds a Config from environment variables, falling back
// to defaults for anything unset.
func LoadFromEnv() *Config {
	return &Config{
		Host:            getEnvOrDefault("SMPIT_HOST", DefaultHost),
		Port:            getEnvAsIntOrDefault("SMPIT_PORT", DefaultPort),
		EnableHTTPS:     getEnvAsBoolOrDefault("SMPIT_ENABLE_HTTPS", false),
		CertFile:        getEnvOrDefault("SMPIT_CERT_FILE", ""),
		KeyFile:         getEnvOrDefault("SMPIT_KEY_FILE", ""),
		AccessKeyID:     getEnvOrDefault("SMPIT_ACCESS_KEY_ID", DefaultAccessKeyID),
		SecretAccessKey: getEnvOrDefault("SMPIT_SECRET_ACCESS_KEY", DefaultSecretAccessKey),
		Region:          getEnvOrDefault("SMPIT_REGION", DefaultRegion),
		DBPath:          getEnvOrDefault("SMPIT_DB_PATH", DefaultDBPath),
		DBKey:           getEnvOrDefault("SMPIT_DB_KEY", ""),
		LogLevel:        getEnvOrDefault("SMPIT_LOG_LEVEL", DefaultLogLevel),
		CleanupInterval: time.Duration(getEnvAsIntOrDefault(
			"SMPIT_CLEANUP_INTERVAL", DefaultCleanupSeconds)) * time.Second,
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return fmt.Errorf("access key id and secret access key must not be empty")
	}
	if c.EnableHTTPS && (c.CertFile == "" || c.KeyFile == "") {
		return fmt.Errorf("https requires both a cert file and a key file")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}
	return nil
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
