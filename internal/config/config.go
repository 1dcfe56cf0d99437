package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress string `mapstructure:"ServerAddress"`
	DBSource      string `mapstructure:"DBSource"`
	MigrationURL  string `mapstructure:"MigrationURL"`
	MaxFileSizeMB int64  `mapstructure:"MaxFileSizeMB"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("ServerAddress", "SERVER_ADDRESS")
	v.BindEnv("DBSource", "DB_SOURCE")
	v.BindEnv("MigrationURL", "MIGRATION_URL")
	v.BindEnv("MaxFileSizeMB", "MAX_FILE_SIZE_MB")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.DBSource == "" {
		cfg.DBSource = v.GetString("DB_SOURCE")
	}
	if cfg.DBSource == "" {
		return nil, fmt.Errorf("DBSource is required")
	}
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = ":8080"
	}
	if cfg.MigrationURL == "" {
		cfg.MigrationURL = "file://migrations"
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}

	return &cfg, nil
}

// MaxFileSizeBytes возвращает лимит размера файла в байтах
func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// AllowedExtensionGroups — группы расширений, разрешенных к загрузке
func AllowedExtensionGroups() map[string][]string {
	return map[string][]string{
		"document": {".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".md", ".csv", ".json", ".xml", ".html"},
		"image":    {".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"},
		"video":    {".mp4", ".mov", ".avi", ".mkv", ".webm"},
		"audio":    {".mp3", ".wav", ".ogg", ".flac"},
		"archive":  {".zip", ".tar", ".gz", ".rar"},
	}
}
