package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// cliConfig is read from the environment and an optional env file.
type cliConfig struct {
	RedisAddr       string `mapstructure:"SESSION_REDIS_ADDR"`
	RedisPrefix     string `mapstructure:"SESSION_REDIS_PREFIX"`
	IdentityURL     string `mapstructure:"SESSION_IDENTITY_URL"`
	IdentityAPIKey  string `mapstructure:"SESSION_IDENTITY_API_KEY"`
	IdentityTimeout string `mapstructure:"SESSION_IDENTITY_TIMEOUT"`
	// SealPassphrase enables encryption of the token store when set.
	SealPassphrase string `mapstructure:"SESSION_SEAL_PASSPHRASE"`
	// SealSalt must be at least 16 bytes and stable across runs.
	SealSalt string `mapstructure:"SESSION_SEAL_SALT"`
}

// loadConfig reads envFile (ignored when missing), then lets the process
// environment override it.
func loadConfig(envFile string) (*cliConfig, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !missingConfig(err) {
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}
	v.AutomaticEnv()

	v.SetDefault("SESSION_REDIS_ADDR", "localhost:6379")
	v.SetDefault("SESSION_REDIS_PREFIX", "gsc")
	v.SetDefault("SESSION_IDENTITY_URL", "")
	v.SetDefault("SESSION_IDENTITY_API_KEY", "")
	v.SetDefault("SESSION_IDENTITY_TIMEOUT", "15s")
	v.SetDefault("SESSION_SEAL_PASSPHRASE", "")
	v.SetDefault("SESSION_SEAL_SALT", "")

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func missingConfig(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func (c *cliConfig) validate() error {
	if c.RedisAddr == "" {
		return errors.New("config: SESSION_REDIS_ADDR must be set")
	}
	if c.RedisPrefix == "" {
		return errors.New("config: SESSION_REDIS_PREFIX must be set")
	}
	if _, err := time.ParseDuration(c.IdentityTimeout); err != nil {
		return fmt.Errorf("config: SESSION_IDENTITY_TIMEOUT: %w", err)
	}
	if c.SealPassphrase != "" && len(c.SealSalt) < 16 {
		return errors.New("config: SESSION_SEAL_SALT must be at least 16 bytes when sealing is enabled")
	}
	return nil
}

// Timeout parses IdentityTimeout. A non-positive value disables the bound.
func (c *cliConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.IdentityTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
