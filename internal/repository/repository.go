package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"bookvault/internal/domain"
)

// Сигнальные ошибки слоя хранения. Сервисный слой переводит их
// в классифицированные ошибки apperr, наружу они не выходят.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// FileTx объединяет операции над версиями, которые обязаны выполняться
// в одной транзакции: чтение текущей версии под блокировкой, архивация,
// вставка новой версии, снятие флага текущей и удержание лимита.
type FileTx interface {
	// LockCurrent читает текущую версию группы с блокировкой строки.
	// Возвращает nil, если группа не существует.
	LockCurrent(key domain.GroupKey) (*domain.FileRecord, error)
	InsertRecord(rec *domain.FileRecord) error
	DemoteCurrent(recordID int64) error
	// LiveVersions возвращает живые версии группы по убыванию номера
	LiveVersions(key domain.GroupKey) ([]domain.FileRecord, error)
	DeleteRecords(ids []int64) error
	InsertHistory(entry *domain.HistoryEntry) error
}

// FileStore — контракт хранилища записей file_uploads
type FileStore interface {
	GetCurrent(ctx context.Context, key domain.GroupKey) (*domain.FileRecord, error)
	GetByID(ctx context.Context, id int64) (*domain.FileRecord, error)
	ListVersions(ctx context.Context, key domain.GroupKey) ([]domain.FileRecord, error)
	ListUploads(ctx context.Context, ownerID int64, folder string, limit, offset int) ([]domain.FileRecord, int64, error)
	DeleteGroup(ctx context.Context, key domain.GroupKey) (int64, error)
	InTx(ctx context.Context, fn func(tx FileTx) error) error
}

// HistoryStore — контракт журнала снимков file_history
type HistoryStore interface {
	Insert(ctx context.Context, entry *domain.HistoryEntry) error
	Query(ctx context.Context, key domain.GroupKey, limit, offset int) ([]domain.HistoryEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	InsertAccessLog(ctx context.Context, entry *domain.AccessLogEntry) error
}

// ConfigStore — контракт таблицы system_config
type ConfigStore interface {
	Get(ctx context.Context, key string) (*domain.SystemConfig, error)
	GetAll(ctx context.Context) ([]domain.SystemConfig, error)
	Upsert(ctx context.Context, cfg *domain.SystemConfig) error
	UpdateValue(ctx context.Context, key, value, configType string) error
}

// isUniqueViolation распознает нарушение ограничения уникальности Postgres
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
