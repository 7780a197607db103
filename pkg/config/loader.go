package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "VRSYNC"

// Load reads configuration from a yaml file in the working directory and
// from environment variables. A missing file is not an error.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	return load(logger, fileName, ".")
}

// LoadFrom is Load with an explicit directory to search.
func LoadFrom(logger *slog.Logger, fileName, dir string) (*Config, error) {
	return load(logger, fileName, dir)
}

func load(logger *slog.Logger, fileName, dir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("client.host", "localhost")
	v.SetDefault("client.port", 4444)
	v.SetDefault("client.path", "ws")
	v.SetDefault("client.room", "")
	v.SetDefault("client.token", "")
	v.SetDefault("client.displayName", "guest")
	v.SetDefault("client.color", "#ffffff")
	v.SetDefault("client.handedness", "right")
	v.SetDefault("client.sendRate", 20)
	v.SetDefault("client.tickRate", 90)
	v.SetDefault("client.inboxSize", 64)
	v.SetDefault("client.closeTimeout", "1s")

	v.SetDefault("relay.address", ":4444")
	v.SetDefault("relay.defaultRoom", "default")
	v.SetDefault("relay.pingInterval", "0s")
	v.SetDefault("relay.messageRate", 120)
	v.SetDefault("relay.messageBurst", 240)
	v.SetDefault("relay.auth.jwtSecret", "")
	v.SetDefault("relay.auth.tokenTTL", "24h")
	v.SetDefault("relay.connectionLimit.maxPerUser", 0)
	v.SetDefault("relay.connectionLimit.mode", "reject")

	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("transport.writeTimeout", "10s")
	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("transport.readLimit", 1<<20)
}

func (c *Config) Validate() error {
	switch c.Relay.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("invalid relay.connectionLimit.mode %q", c.Relay.ConnectionLimit.Mode)
	}
	if c.Client.SendRate < 0 || c.Client.TickRate < 0 {
		return errors.New("client rates must not be negative")
	}
	return nil
}
