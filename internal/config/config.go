package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xraph/testhost/internal/errors"
)

// Options holds the tunables of the test host. Values come from defaults,
// then an optional .testhost.yaml in the working directory, then
// TESTHOST_* environment variables, highest last.
type Options struct {
	// CleanupTimeout bounds teardown's drain of asynchronous work.
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`

	// PollInterval is how often the drain loop pumps between waits.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// LogLevel controls the host's own logging (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// MetricsEnabled turns on the prometheus recorder.
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// Default returns the options used when nothing is configured.
func Default() Options {
	return Options{
		CleanupTimeout: 15 * time.Second,
		PollInterval:   50 * time.Millisecond,
		LogLevel:       "warn",
		MetricsEnabled: false,
	}
}

// Load reads options from the optional config file and the environment.
// A missing config file is not an error; a malformed one is.
func Load() (Options, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("cleanup_timeout", defaults.CleanupTimeout)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("metrics_enabled", defaults.MetricsEnabled)

	v.SetConfigName(".testhost")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TESTHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Options{}, errors.ErrConfigError("failed to read .testhost.yaml", err)
		}
	}

	// Typed getters rather than Unmarshal: environment values arrive as
	// strings, and the getters coerce them into durations and bools.
	opts := Options{
		CleanupTimeout: v.GetDuration("cleanup_timeout"),
		PollInterval:   v.GetDuration("poll_interval"),
		LogLevel:       v.GetString("log_level"),
		MetricsEnabled: v.GetBool("metrics_enabled"),
	}

	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = defaults.CleanupTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}

	return opts, nil
}
