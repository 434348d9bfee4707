package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`

	Role string `mapstructure:"role"`
	Name string `mapstructure:"name"`
	Room string `mapstructure:"room"`

	SignalingURL string `mapstructure:"signaling_url"`
	SignalingWS  string `mapstructure:"signaling_ws"`
	SFUURL       string `mapstructure:"sfu_url"`

	StatusPort int `mapstructure:"status_port"`

	AckTimeout      time.Duration `mapstructure:"ack_timeout"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	AdminPollPeriod time.Duration `mapstructure:"admin_poll_period"`
}

// Load reads config/config.<env>.yaml selected by CONFIG_ENV and
// overlays the command-line flags. Missing file falls back to
// defaults.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("status_port", 8090)
	v.SetDefault("ack_timeout", "5s")
	v.SetDefault("ping_period", "3s")
	v.SetDefault("ping_timeout", "2s")
	v.SetDefault("admin_poll_period", "3s")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("signaling", cfg.SignalingURL).
		Str("sfu", cfg.SFUURL).
		Int("status_port", cfg.StatusPort).
		Msg("config ready")
	return &cfg, nil
}
