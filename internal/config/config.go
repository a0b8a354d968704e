package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// Secret is the server-side shared key accepted as an alternative
	// to a bearer token during registration. Empty disables that path.
	Secret string `mapstructure:"secret"`
	// SessionSecret signs the dashboard cookie session store.
	SessionSecret string `mapstructure:"session_secret"`

	FirebaseAPIKey string `mapstructure:"firebase_api_key"`
	RedisAddr      string `mapstructure:"redis_addr"`

	ReadLimit  int64 `mapstructure:"read_limit"`
	SendBuffer int   `mapstructure:"send_buffer"`

	PingInterval  time.Duration `mapstructure:"ping_interval"`
	PresenceDelay time.Duration `mapstructure:"presence_delay"`

	DrainBatch    int `mapstructure:"drain_batch"`
	QueueCapacity int `mapstructure:"queue_capacity"`
}

func Load() (*Config, error) {
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
	v.SetDefault("port", 8080)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("ping_interval", "30s")
	v.SetDefault("presence_delay", "1s")
	v.SetDefault("drain_batch", 200)
	v.SetDefault("queue_capacity", 1024)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
