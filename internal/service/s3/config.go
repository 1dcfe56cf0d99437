package s3

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	Region          string `mapstructure:"Region"`
	Endpoint        string `mapstructure:"Endpoint"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("AccessKeyID", "AWS_ACCESS_KEY_ID")
	v.BindEnv("SecretAccessKey", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("Bucket", "S3_BUCKET_NAME")
	v.BindEnv("Region", "AWS_REGION")
	v.BindEnv("Endpoint", "S3_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	// Проверяем, что все необходимые поля заполнены
	if cfg.AccessKeyID == "" {
		cfg.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	}
	if cfg.SecretAccessKey == "" {
		cfg.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = v.GetString("S3_BUCKET_NAME")
	}

	if cfg.AccessKeyID == "" {
		return nil, fmt.Errorf("AccessKeyID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("SecretAccessKey is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("Bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	return &cfg, nil
}
