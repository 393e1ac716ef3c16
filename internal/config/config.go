package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
)

const (
	DefaultInterval      = 2
	DefaultRetentionDays = 7
	DefaultDBPath        = "/var/lib/phonetemp/history.db"
	DefaultListenAddr    = "127.0.0.1:9177"
	DefaultSource        = "sysfs"
	DefaultThermalZone   = "/sys/class/thermal/thermal_zone0/temp"
	DefaultLogLevel      = "info"
)

type Config struct {
	Interval      int    `mapstructure:"interval"`
	RetentionDays int    `mapstructure:"retention_days"`
	Database      string `mapstructure:"database"`
	DeviceLabel   string `mapstructure:"device_label"`
	Listen        string `mapstructure:"listen"`
	WebhookURL    string `mapstructure:"webhook_url"`
	Source        string `mapstructure:"source"`
	ThermalZone   string `mapstructure:"thermal_zone"`
	LogLevel      string `mapstructure:"log_level"`
	Debug         bool   `mapstructure:"debug"`
	Verbose       bool   `mapstructure:"verbose"`
}

// Load reads configuration from file, environment and any flags already bound
// to viper, then validates the result. The config file is optional; explicit
// paths via PHONETEMP_CONFIG take precedence over the search paths.
func Load() (*Config, error) {
	errFactory := errors.New()

	viper.SetDefault("interval", DefaultInterval)
	viper.SetDefault("retention_days", DefaultRetentionDays)
	viper.SetDefault("database", DefaultDBPath)
	viper.SetDefault("device_label", defaultDeviceLabel())
	viper.SetDefault("listen", DefaultListenAddr)
	viper.SetDefault("source", DefaultSource)
	viper.SetDefault("thermal_zone", DefaultThermalZone)
	viper.SetDefault("log_level", DefaultLogLevel)

	viper.SetEnvPrefix("PHONETEMP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if explicit := os.Getenv("PHONETEMP_CONFIG"); explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.SetConfigName("phonetemp")
		viper.SetConfigType("toml")
		viper.AddConfigPath("/etc/phonetemp")
		viper.AddConfigPath("$HOME/.config/phonetemp")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.RetentionDays <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "retention_days must be positive")
	}
	if c.Database == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "database path must not be empty")
	}
	if c.Source != "sysfs" && c.Source != "nvml" {
		return errFactory.WithData(errors.ErrInvalidConfig, c.Source)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

func defaultDeviceLabel() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-device"
	}
	return host
}
