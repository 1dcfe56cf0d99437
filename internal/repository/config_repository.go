package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bookvault/internal/domain"
)

// ConfigRepository хранит изменяемую на лету конфигурацию (system_config)
type ConfigRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

func (r *ConfigRepository) Get(ctx context.Context, key string) (*domain.SystemConfig, error) {
	var cfg domain.SystemConfig
	query := `SELECT * FROM system_config WHERE config_key = $1`

	err := r.db.GetContext(ctx, &cfg, query, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return &cfg, nil
}

func (r *ConfigRepository) GetAll(ctx context.Context) ([]domain.SystemConfig, error) {
	var configs []domain.SystemConfig
	query := `SELECT * FROM system_config ORDER BY config_key`

	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("failed to get all config: %w", err)
	}
	return configs, nil
}

// Upsert вставляет параметр, не трогая существующее значение —
// используется при инициализации значений по умолчанию
func (r *ConfigRepository) Upsert(ctx context.Context, cfg *domain.SystemConfig) error {
	query := `
        INSERT INTO system_config (config_key, config_value, config_type, description, is_editable)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (config_key) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		cfg.ConfigKey, cfg.ConfigValue, cfg.ConfigType, cfg.Description, cfg.IsEditable)
	if err != nil {
		return fmt.Errorf("failed to upsert config %s: %w", cfg.ConfigKey, err)
	}
	return nil
}

func (r *ConfigRepository) UpdateValue(ctx context.Context, key, value, configType string) error {
	query := `
        UPDATE system_config
        SET config_value = $1, config_type = $2, updated_at = CURRENT_TIMESTAMP
        WHERE config_key = $3`

	result, err := r.db.ExecContext(ctx, query, value, configType, key)
	if err != nil {
		return fmt.Errorf("failed to update config %s: %w", key, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: config key %s", ErrNotFound, key)
	}
	return nil
}
