// Package config loads server settings from flags, the environment, an
// optional .env file and an optional lifesync.yaml, in that precedence.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultPort = 4000

type Config struct {
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	Grid           GridConfig    `mapstructure:"grid"`
	ShutdownWait   time.Duration `mapstructure:"shutdown_wait"`
}

type GridConfig struct {
	Width  int           `mapstructure:"width"`
	Height int           `mapstructure:"height"`
	Rule   string        `mapstructure:"rule"`
	Seed   int64         `mapstructure:"seed"`
	Tick   time.Duration `mapstructure:"tick"`
}

// Flags defines the command line overrides understood by Load.
func Flags(fs *pflag.FlagSet) {
	fs.Int("port", DefaultPort, "listening port")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("config", "", "path to a config file (default ./lifesync.yaml if present)")
}

// Load resolves the configuration. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	v := viper.New()
	v.SetDefault("port", DefaultPort)
	v.SetDefault("log_level", "info")
	v.SetDefault("max_message_size", 4096)
	v.SetDefault("shutdown_wait", "10s")
	v.SetDefault("grid.width", 40)
	v.SetDefault("grid.height", 40)
	v.SetDefault("grid.rule", "B3/S23")
	v.SetDefault("grid.seed", 0)
	v.SetDefault("grid.tick", "0s")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if f := fs.Lookup("port"); f != nil {
			if err := v.BindPFlag("port", f); err != nil {
				return nil, errors.Wrap(err, "bind port flag")
			}
		}
		if f := fs.Lookup("log-level"); f != nil {
			if err := v.BindPFlag("log_level", f); err != nil {
				return nil, errors.Wrap(err, "bind log-level flag")
			}
		}
	}

	var file string
	if fs != nil {
		file, _ = fs.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("lifesync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
		slog.Debug("config file not found, relying on defaults and env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return errors.Errorf("grid size %dx%d must be positive", c.Grid.Width, c.Grid.Height)
	}
	if c.Grid.Tick < 0 {
		return errors.Errorf("grid tick %s must not be negative", c.Grid.Tick)
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
