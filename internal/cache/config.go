package cache

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Addr     string `mapstructure:"Addr"`
	Password string `mapstructure:"Password"`
	DB       int    `mapstructure:"DB"`

	RateLimitRequests int `mapstructure:"RateLimitRequests"`
	RateLimitWindow   int `mapstructure:"RateLimitWindow"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("Addr", "REDIS_ADDR")
	v.BindEnv("Password", "REDIS_PASSWORD")
	v.BindEnv("DB", "REDIS_DB")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.Addr == "" {
		cfg.Addr = v.GetString("REDIS_ADDR")
	}

	// Значения по умолчанию для ограничителя запросов
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = 100
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = 60
	}

	return &cfg, nil
}
