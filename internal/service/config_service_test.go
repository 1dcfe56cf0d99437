package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
)

func TestEnsureInitialized_CreatesDefaults(t *testing.T) {
	store := newMemConfigStore()
	svc := NewConfigService(store, nil)

	require.NoError(t, svc.EnsureInitialized(context.Background()))

	configs, err := svc.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, configs, len(defaultConfig))

	// Повторная инициализация не перетирает существующие значения
	require.NoError(t, svc.Update(context.Background(), ConfigMaxFileVersions, "5"))
	require.NoError(t, svc.EnsureInitialized(context.Background()))
	assert.Equal(t, 5, svc.GetInt(context.Background(), ConfigMaxFileVersions, 0))
}

func TestGetInt_FallbackOnMissingOrInvalid(t *testing.T) {
	store := newMemConfigStore()
	svc := NewConfigService(store, nil)

	assert.Equal(t, 42, svc.GetInt(context.Background(), "no_such_key", 42))

	store.set("bad_number", "abc", domain.ConfigTypeNumber)
	assert.Equal(t, 7, svc.GetInt(context.Background(), "bad_number", 7))
}

func TestUpdate_NonEditableRejected(t *testing.T) {
	store := newMemConfigStore()
	store.configs["locked"] = &domain.SystemConfig{
		ConfigKey: "locked", ConfigValue: "x", ConfigType: domain.ConfigTypeString, IsEditable: false,
	}
	svc := NewConfigService(store, nil)

	err := svc.Update(context.Background(), "locked", "y")
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestUpdate_UnknownKey(t *testing.T) {
	svc := NewConfigService(newMemConfigStore(), nil)

	err := svc.Update(context.Background(), "no_such_key", "y")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRetentionPolicy_Clamps(t *testing.T) {
	store := newMemConfigStore()
	svc := NewConfigService(store, nil)
	require.NoError(t, svc.EnsureInitialized(context.Background()))

	policy := svc.RetentionPolicy(context.Background())
	assert.Equal(t, 10, policy.MaxVersionsPerFile)
	assert.Equal(t, 365, policy.HistoryRetentionDays)

	// Лимит версий не падает ниже единицы, срок хранения — ниже нуля
	store.set(ConfigMaxFileVersions, "0", domain.ConfigTypeNumber)
	store.set(ConfigHistoryRetentionDays, "-5", domain.ConfigTypeNumber)

	policy = svc.RetentionPolicy(context.Background())
	assert.Equal(t, 1, policy.MaxVersionsPerFile)
	assert.Equal(t, 0, policy.HistoryRetentionDays)
}

func TestIsLoggingEnabled(t *testing.T) {
	store := newMemConfigStore()
	svc := NewConfigService(store, nil)
	require.NoError(t, svc.EnsureInitialized(context.Background()))

	ctx := context.Background()
	assert.True(t, svc.IsLoggingEnabled(ctx, domain.ActionDownload))
	assert.True(t, svc.IsLoggingEnabled(ctx, domain.ActionView))

	store.set(ConfigDownloadLogging, "false", domain.ConfigTypeBoolean)
	assert.False(t, svc.IsLoggingEnabled(ctx, domain.ActionDownload))
	assert.True(t, svc.IsLoggingEnabled(ctx, domain.ActionView))

	// Остальные действия журналируются безусловно
	assert.True(t, svc.IsLoggingEnabled(ctx, domain.ActionVersionCreate))
	assert.True(t, svc.IsLoggingEnabled(ctx, domain.ActionDelete))
}

func TestDetectConfigType(t *testing.T) {
	assert.Equal(t, domain.ConfigTypeBoolean, detectConfigType("true"))
	assert.Equal(t, domain.ConfigTypeBoolean, detectConfigType("false"))
	assert.Equal(t, domain.ConfigTypeNumber, detectConfigType("123"))
	assert.Equal(t, domain.ConfigTypeJSON, detectConfigType(`{"a":1}`))
	assert.Equal(t, domain.ConfigTypeString, detectConfigType("hello"))
}
