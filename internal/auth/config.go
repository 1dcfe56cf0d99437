package auth

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	JWTSecret       string `mapstructure:"JWTSecret"`
	TokenTTLMinutes int    `mapstructure:"TokenTTLMinutes"`
	Issuer          string `mapstructure:"Issuer"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("JWTSecret", "JWT_SECRET")
	v.BindEnv("TokenTTLMinutes", "JWT_TTL_MINUTES")
	v.BindEnv("Issuer", "JWT_ISSUER")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWTSecret is required")
	}
	if cfg.TokenTTLMinutes <= 0 {
		cfg.TokenTTLMinutes = 60
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "bookvault"
	}

	return &cfg, nil
}
