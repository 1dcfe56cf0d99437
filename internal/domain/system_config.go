package domain

import "time"

// Типы значений конфигурации
const (
	ConfigTypeBoolean = "boolean"
	ConfigTypeNumber  = "number"
	ConfigTypeString  = "string"
	ConfigTypeJSON    = "json"
)

// SystemConfig представляет изменяемый на лету параметр конфигурации
type SystemConfig struct {
	ID          int64     `json:"id" db:"id"`
	ConfigKey   string    `json:"config_key" db:"config_key"`
	ConfigValue string    `json:"config_value" db:"config_value"`
	ConfigType  string    `json:"config_type" db:"config_type"`
	Description string    `json:"description" db:"description"`
	IsEditable  bool      `json:"is_editable" db:"is_editable"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
