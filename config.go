package veloq

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the tunables of a compiler instance.
type Config struct {
	// Logger receives structured failure events.
	// OPTIONAL: Uses slog.Default() if nil.
	// If LogLevel is set, a new text logger is created with that level.
	Logger *slog.Logger `yaml:"-"`

	// LogLevel sets the level of the default logger.
	// Valid values: "debug", "info", "warn", "error".
	// Ignored when Logger is provided.
	LogLevel string `yaml:"log_level"`

	// SlowQueryThreshold, when positive, makes the compiler log a
	// warning for executions that take longer.
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("veloq: read config: %w", err)
	}
	var raw struct {
		LogLevel           string `yaml:"log_level"`
		SlowQueryThreshold string `yaml:"slow_query_threshold"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return c, fmt.Errorf("veloq: parse config: %w", err)
	}
	c.LogLevel = raw.LogLevel
	if raw.SlowQueryThreshold != "" {
		d, err := time.ParseDuration(raw.SlowQueryThreshold)
		if err != nil {
			return c, NewConfigError("", "invalid slow_query_threshold", err)
		}
		c.SlowQueryThreshold = d
	}
	if _, err := c.level(); err != nil {
		return c, err
	}
	return c, nil
}

// NewLogger resolves the configured logger.
func (c Config) NewLogger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel == "" {
		return slog.Default()
	}
	level, err := c.level()
	if err != nil {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func (c Config) level() (slog.Level, error) {
	switch c.LogLevel {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, NewConfigError("", fmt.Sprintf("unknown log level %q", c.LogLevel), nil)
	}
}
