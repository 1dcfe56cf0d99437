package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookvault/internal/domain"
)

// HistoryRepository хранит снимки вытесненных версий и журнал доступа
type HistoryRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

const historyColumns = `id, source_record_id, original_filename, folder_path, owner_id,
        s3_key, s3_url, content_type, file_size, text_content, score, metadata,
        upload_ip, upload_status, version, archive_reason, archived_at`

// sqlx.ExtContext покрывает и *sqlx.DB, и *sqlx.Tx — вставка снимка
// используется как отдельно, так и внутри транзакции смены версии
func insertHistoryEntry(ctx context.Context, ext sqlx.ExtContext, entry *domain.HistoryEntry) error {
	query := `
        INSERT INTO file_history (
            source_record_id, original_filename, folder_path, owner_id,
            s3_key, s3_url, content_type, file_size, text_content, score,
            metadata, upload_ip, upload_status, version, archive_reason
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id, archived_at`

	err := ext.QueryRowxContext(
		ctx,
		query,
		entry.SourceRecordID,
		entry.OriginalFilename,
		entry.FolderPath,
		entry.OwnerID,
		entry.S3Key,
		entry.S3URL,
		entry.ContentType,
		entry.FileSize,
		entry.TextContent,
		entry.Score,
		entry.Metadata,
		entry.UploadIP,
		entry.UploadStatus,
		entry.Version,
		entry.ArchiveReason,
	).Scan(&entry.ID, &entry.ArchivedAt)
	if err != nil {
		// Уникальность source_record_id отбивает повторную архивацию
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: record %d already archived", ErrDuplicate, entry.SourceRecordID)
		}
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Insert(ctx context.Context, entry *domain.HistoryEntry) error {
	return insertHistoryEntry(ctx, r.db, entry)
}

// Query возвращает страницу истории группы по убыванию времени архивации
func (r *HistoryRepository) Query(ctx context.Context, key domain.GroupKey, limit, offset int) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	query := `
        SELECT ` + historyColumns + `
        FROM file_history
        WHERE original_filename = $1 AND folder_path = $2 AND owner_id = $3
        ORDER BY archived_at DESC, id DESC
        LIMIT $4 OFFSET $5`

	err := r.db.SelectContext(ctx, &entries, query,
		key.OriginalFilename, key.FolderPath, key.OwnerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan удаляет записи, заархивированные строго раньше cutoff.
// Запись ровно на границе сохраняется.
func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM file_history WHERE archived_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	return result.RowsAffected()
}

func (r *HistoryRepository) InsertAccessLog(ctx context.Context, entry *domain.AccessLogEntry) error {
	query := `
        INSERT INTO file_access_log (record_id, s3_key, action, action_by, details, ip_address, user_agent)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.RecordID,
		entry.S3Key,
		entry.Action,
		entry.ActionBy,
		entry.Details,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert access log entry: %w", err)
	}
	return nil
}
