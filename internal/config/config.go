package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
)

// Config holds the full application configuration.
type Config struct {
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Voice   VoiceConfig   `yaml:"voice" mapstructure:"voice"`
	Haptics HapticsConfig `yaml:"haptics" mapstructure:"haptics"`
	Counter CounterConfig `yaml:"counter" mapstructure:"counter"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// APIConfig points at the remote scoring service.
type APIConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the request timeout. Zero means none.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// VoiceConfig configures speech recognition and the spoken alert.
type VoiceConfig struct {
	Locale string  `yaml:"locale" mapstructure:"locale"`
	Rate   float64 `yaml:"rate" mapstructure:"rate"`
}

// HapticsConfig configures the RED verdict vibration.
type HapticsConfig struct {
	Enabled bool  `yaml:"enabled" mapstructure:"enabled"`
	Pattern []int `yaml:"pattern" mapstructure:"pattern"`
}

// PatternDurations returns the pattern in milliseconds as durations.
func (c HapticsConfig) PatternDurations() []time.Duration {
	out := make([]time.Duration, 0, len(c.Pattern))
	for _, ms := range c.Pattern {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

// CounterConfig seeds the "threats blocked" display.
type CounterConfig struct {
	Baseline int64 `yaml:"baseline" mapstructure:"baseline"`
}

// ExportConfig configures the shareable card.
type ExportConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Filename string `yaml:"filename" mapstructure:"filename"`
	SettleMS int    `yaml:"settle_ms" mapstructure:"settle_ms"`
	Scale    int    `yaml:"scale" mapstructure:"scale"`
}

// Settle returns the delay before the card is snapshotted.
func (c ExportConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// ServerConfig configures the session HTTP server.
type ServerConfig struct {
	Port       int     `yaml:"port" mapstructure:"port"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout_secs", 60)
	v.SetDefault("voice.locale", "en-US")
	v.SetDefault("voice.rate", 0.95)
	v.SetDefault("haptics.enabled", true)
	v.SetDefault("haptics.pattern", []int{100, 50, 100, 50, 500})
	v.SetDefault("counter.baseline", 1241)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.filename", "aegis-safe-card.png")
	v.SetDefault("export.settle_ms", 100)
	v.SetDefault("export.scale", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_sec", 5)
	v.SetDefault("server.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// scan, listen, serve or health.
func (c *Config) Validate(mode string) error {
	var errs []string

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, "api.timeout_secs must be >= 0")
	}

	switch mode {
	case "health":
	case "scan", "listen", "serve":
		if _, err := language.Parse(c.Voice.Locale); err != nil {
			errs = append(errs, "voice.locale must be a BCP 47 tag")
		}
		if c.Voice.Rate <= 0 || c.Voice.Rate > 10 {
			errs = append(errs, "voice.rate must be in (0, 10]")
		}
		if c.Export.SettleMS < 0 {
			errs = append(errs, "export.settle_ms must be >= 0")
		}
		if c.Export.Scale < 1 {
			errs = append(errs, "export.scale must be >= 1")
		}
		for _, ms := range c.Haptics.Pattern {
			if ms < 0 {
				errs = append(errs, "haptics.pattern values must be >= 0")
				break
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RatePerSec <= 0 {
			errs = append(errs, "server.rate_per_sec must be > 0")
		}
		if c.Server.Burst < 1 {
			errs = append(errs, "server.burst must be >= 1")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
