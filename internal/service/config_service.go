package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"bookvault/internal/apperr"
	"bookvault/internal/cache"
	"bookvault/internal/domain"
	"bookvault/internal/repository"
)

// Ключи изменяемой на лету конфигурации
const (
	ConfigMaxFileVersions      = "max_file_versions"
	ConfigHistoryRetentionDays = "file_history_retention_days"
	ConfigDownloadLogging      = "file_download_logging"
	ConfigViewLogging          = "file_view_logging"
	ConfigUserHistoryAccess    = "user_history_access"
	ConfigAdminHistoryAccess   = "admin_history_access"
	ConfigAutoCleanupHistory   = "auto_cleanup_history"
	ConfigHistoryExportLimit   = "history_export_limit"
)

const configCacheTTL = 30 * time.Second

// Значения по умолчанию, создаются при старте, если их еще нет
var defaultConfig = []domain.SystemConfig{
	{ConfigKey: ConfigMaxFileVersions, ConfigValue: "10", ConfigType: domain.ConfigTypeNumber,
		Description: "Maximum number of versions to keep for each file", IsEditable: true},
	{ConfigKey: ConfigHistoryRetentionDays, ConfigValue: "365", ConfigType: domain.ConfigTypeNumber,
		Description: "Number of days to keep file history records", IsEditable: true},
	{ConfigKey: ConfigDownloadLogging, ConfigValue: "true", ConfigType: domain.ConfigTypeBoolean,
		Description: "Enable logging of file download events", IsEditable: true},
	{ConfigKey: ConfigViewLogging, ConfigValue: "true", ConfigType: domain.ConfigTypeBoolean,
		Description: "Enable logging of file view events", IsEditable: true},
	{ConfigKey: ConfigUserHistoryAccess, ConfigValue: "true", ConfigType: domain.ConfigTypeBoolean,
		Description: "Allow users to view their own file history", IsEditable: true},
	{ConfigKey: ConfigAdminHistoryAccess, ConfigValue: "true", ConfigType: domain.ConfigTypeBoolean,
		Description: "Allow administrators to view all file history", IsEditable: true},
	{ConfigKey: ConfigAutoCleanupHistory, ConfigValue: "true", ConfigType: domain.ConfigTypeBoolean,
		Description: "Automatically cleanup old history records", IsEditable: true},
	{ConfigKey: ConfigHistoryExportLimit, ConfigValue: "1000", ConfigType: domain.ConfigTypeNumber,
		Description: "Maximum number of records to allow for export", IsEditable: true},
}

// ConfigService читает и изменяет параметры system_config.
// Значения кэшируются в Redis с коротким TTL и сбрасываются при изменении.
type ConfigService struct {
	configRepo repository.ConfigStore
	cache      *cache.Cache
}

func NewConfigService(configRepo repository.ConfigStore, c *cache.Cache) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		cache:      c,
	}
}

// EnsureInitialized создает значения по умолчанию, если их еще нет
func (s *ConfigService) EnsureInitialized(ctx context.Context) error {
	for i := range defaultConfig {
		cfg := defaultConfig[i]
		if err := s.configRepo.Upsert(ctx, &cfg); err != nil {
			return apperr.Wrap(apperr.KindPersistence, err, "failed to initialize config %s", cfg.ConfigKey)
		}
	}
	return nil
}

func (s *ConfigService) getRaw(ctx context.Context, key string) (string, error) {
	cacheKey := "config:" + key
	if val, ok := s.cache.Get(ctx, cacheKey); ok {
		return val, nil
	}

	cfg, err := s.configRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.New(apperr.KindNotFound, "config key %s not found", key)
		}
		return "", apperr.Wrap(apperr.KindPersistence, err, "failed to read config %s", key)
	}

	s.cache.Set(ctx, cacheKey, cfg.ConfigValue, configCacheTTL)
	return cfg.ConfigValue, nil
}

// GetInt возвращает числовой параметр; при отсутствии — fallback
func (s *ConfigService) GetInt(ctx context.Context, key string, fallback int) int {
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[ConfigService] config %s has non-numeric value %q", key, raw)
		return fallback
	}
	return n
}

// GetBool возвращает булев параметр; при отсутствии — fallback
func (s *ConfigService) GetBool(ctx context.Context, key string, fallback bool) bool {
	raw, err := s.getRaw(ctx, key)
	if err != nil {
		return fallback
	}
	return raw == "true"
}

// All возвращает все параметры конфигурации
func (s *ConfigService) All(ctx context.Context) ([]domain.SystemConfig, error) {
	configs, err := s.configRepo.GetAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to read config")
	}
	return configs, nil
}

// Update изменяет параметр. Нередактируемые параметры изменить нельзя.
func (s *ConfigService) Update(ctx context.Context, key, value string) error {
	cfg, err := s.configRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "config key %s not found", key)
		}
		return apperr.Wrap(apperr.KindPersistence, err, "failed to read config %s", key)
	}
	if !cfg.IsEditable {
		return apperr.New(apperr.KindPermissionDenied, "config key %s is not editable", key)
	}

	if err := s.configRepo.UpdateValue(ctx, key, value, detectConfigType(value)); err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to update config %s", key)
	}

	s.cache.Delete(ctx, "config:"+key)
	return nil
}

// RetentionPolicy собирает действующую политику хранения.
// Лимит версий не может быть меньше единицы: текущая версия живет всегда.
func (s *ConfigService) RetentionPolicy(ctx context.Context) domain.RetentionPolicy {
	maxVersions := s.GetInt(ctx, ConfigMaxFileVersions, 10)
	if maxVersions < 1 {
		maxVersions = 1
	}
	retentionDays := s.GetInt(ctx, ConfigHistoryRetentionDays, 365)
	if retentionDays < 0 {
		retentionDays = 0
	}

	return domain.RetentionPolicy{
		MaxVersionsPerFile:   maxVersions,
		HistoryRetentionDays: retentionDays,
	}
}

// IsLoggingEnabled сообщает, нужно ли фиксировать действие в журнале доступа.
// Отключаемы только скачивание и просмотр; остальные действия пишутся всегда.
func (s *ConfigService) IsLoggingEnabled(ctx context.Context, action string) bool {
	switch action {
	case domain.ActionDownload:
		return s.GetBool(ctx, ConfigDownloadLogging, true)
	case domain.ActionView:
		return s.GetBool(ctx, ConfigViewLogging, true)
	default:
		return true
	}
}

// detectConfigType определяет тип значения по его виду
func detectConfigType(value string) string {
	if value == "true" || value == "false" {
		return domain.ConfigTypeBoolean
	}
	if _, err := strconv.Atoi(value); err == nil {
		return domain.ConfigTypeNumber
	}
	if len(value) > 1 && value[0] == '{' && value[len(value)-1] == '}' {
		return domain.ConfigTypeJSON
	}
	return domain.ConfigTypeString
}
