// Package config loads application configuration from environment variables
// and an optional YAML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key to form its environment variable.
const EnvPrefix = "LEAKWATCH"

// Config holds the application configuration.
type Config struct {
	ListenAddr              string
	DBPath                  string
	SecretKey               []byte // 32-byte AES-256 key for webhook secrets at rest; nil if unset.
	DeliveryTimeout         time.Duration
	TestTimeout             time.Duration
	MaxRetries              int
	RetryBase               time.Duration
	MaxConcurrentDeliveries int
	ShutdownGrace           time.Duration
	UserAgent               string
}

var defaults = map[string]any{
	"listen_addr":               "127.0.0.1:8080",
	"db_path":                   "leakwatch.db",
	"secret_key":                "",
	"delivery_timeout":          "30s",
	"test_timeout":              "15s",
	"max_retries":               "3",
	"retry_base":                "1s",
	"max_concurrent_deliveries": "32",
	"shutdown_grace":            "30s",
	"user_agent":                "leakwatch-webhook/1",
}

// Load reads configuration and returns a validated Config. Values come from
// LEAKWATCH_* environment variables, then from configFile (or the file named
// by LEAKWATCH_CONFIG when configFile is empty), then from built-in defaults.
// LEAKWATCH_SECRET_KEY is optional; without it webhooks cannot carry a
// signing secret.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var errs []error
	cfg := &Config{
		ListenAddr:              strings.TrimSpace(v.GetString("listen_addr")),
		DBPath:                  strings.TrimSpace(v.GetString("db_path")),
		DeliveryTimeout:         duration(v, "delivery_timeout", &errs),
		TestTimeout:             duration(v, "test_timeout", &errs),
		MaxRetries:              integer(v, "max_retries", 0, &errs),
		RetryBase:               duration(v, "retry_base", &errs),
		MaxConcurrentDeliveries: integer(v, "max_concurrent_deliveries", 1, &errs),
		ShutdownGrace:           duration(v, "shutdown_grace", &errs),
		UserAgent:               v.GetString("user_agent"),
	}

	if cfg.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", envName("listen_addr")))
	}
	if cfg.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", envName("db_path")))
	}

	if raw := strings.TrimSpace(v.GetString("secret_key")); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil || len(key) != 32 {
			errs = append(errs, fmt.Errorf("%s must be 64 hex characters (32 bytes)", envName("secret_key")))
		} else {
			cfg.SecretKey = key
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func duration(v *viper.Viper, key string, errs *[]error) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s has invalid duration %q: %w", envName(key), raw, err))
		return 0
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be positive, got %s", envName(key), raw))
	}
	return d
}

func integer(v *viper.Viper, key string, minimum int, errs *[]error) int {
	raw := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s has invalid integer %q: %w", envName(key), raw, err))
		return 0
	}
	if n < minimum {
		*errs = append(*errs, fmt.Errorf("%s must be at least %d, got %d", envName(key), minimum, n))
	}
	return n
}
