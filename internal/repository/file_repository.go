package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bookvault/internal/domain"
)

// FileRepository хранит записи версий файлов в Postgres
type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, original_filename, folder_path, owner_id, s3_key, s3_url,
        content_type, file_size, text_content, score, metadata, upload_ip,
        upload_status, processing_time_ms, version, is_current, parent_version_id,
        version_comment, created_at, updated_at`

func (r *FileRepository) GetCurrent(ctx context.Context, key domain.GroupKey) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	query := `
        SELECT ` + fileColumns + `
        FROM file_uploads
        WHERE original_filename = $1 AND folder_path = $2 AND owner_id = $3
          AND is_current = TRUE`

	err := r.db.GetContext(ctx, &rec, query, key.OriginalFilename, key.FolderPath, key.OwnerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}
	return &rec, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id int64) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	query := `SELECT ` + fileColumns + ` FROM file_uploads WHERE id = $1`

	err := r.db.GetContext(ctx, &rec, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	return &rec, nil
}

// ListVersions возвращает живые версии группы по убыванию номера версии
func (r *FileRepository) ListVersions(ctx context.Context, key domain.GroupKey) ([]domain.FileRecord, error) {
	var records []domain.FileRecord
	query := `
        SELECT ` + fileColumns + `
        FROM file_uploads
        WHERE original_filename = $1 AND folder_path = $2 AND owner_id = $3
        ORDER BY version DESC`

	err := r.db.SelectContext(ctx, &records, query, key.OriginalFilename, key.FolderPath, key.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return records, nil
}

// ListUploads возвращает страницу текущих версий с фильтрами по владельцу и папке
func (r *FileRepository) ListUploads(ctx context.Context, ownerID int64, folder string, limit, offset int) ([]domain.FileRecord, int64, error) {
	where := `WHERE is_current = TRUE`
	args := []interface{}{}
	n := 0
	if ownerID != 0 {
		n++
		where += fmt.Sprintf(" AND owner_id = $%d", n)
		args = append(args, ownerID)
	}
	if folder != "" {
		n++
		where += fmt.Sprintf(" AND folder_path = $%d", n)
		args = append(args, folder)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM file_uploads ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count uploads: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+fileColumns+`
        FROM file_uploads %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, limit, offset)

	var records []domain.FileRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list uploads: %w", err)
	}
	return records, total, nil
}

// DeleteGroup удаляет все живые записи группы, возвращает число удаленных строк
func (r *FileRepository) DeleteGroup(ctx context.Context, key domain.GroupKey) (int64, error) {
	query := `
        DELETE FROM file_uploads
        WHERE original_filename = $1 AND folder_path = $2 AND owner_id = $3`

	result, err := r.db.ExecContext(ctx, query, key.OriginalFilename, key.FolderPath, key.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group: %w", err)
	}
	return result.RowsAffected()
}

// InTx выполняет fn в одной транзакции. Блокировка текущей строки группы
// внутри fn сериализует конкурентные создания версий одной группы;
// разные группы не конкурируют между собой.
func (r *FileRepository) InTx(ctx context.Context, fn func(tx FileTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&fileTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// fileTx реализует FileTx поверх *sqlx.Tx
type fileTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *fileTx) LockCurrent(key domain.GroupKey) (*domain.FileRecord, error) {
	var rec domain.FileRecord
	query := `
        SELECT ` + fileColumns + `
        FROM file_uploads
        WHERE original_filename = $1 AND folder_path = $2 AND owner_id = $3
          AND is_current = TRUE
        FOR UPDATE`

	err := t.tx.GetContext(t.ctx, &rec, query, key.OriginalFilename, key.FolderPath, key.OwnerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock current version: %w", err)
	}
	return &rec, nil
}

func (t *fileTx) InsertRecord(rec *domain.FileRecord) error {
	query := `
        INSERT INTO file_uploads (
            original_filename, folder_path, owner_id, s3_key, s3_url,
            content_type, file_size, text_content, score, metadata, upload_ip,
            upload_status, processing_time_ms, version, is_current,
            parent_version_id, version_comment
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowContext(
		t.ctx,
		query,
		rec.OriginalFilename,
		rec.FolderPath,
		rec.OwnerID,
		rec.S3Key,
		rec.S3URL,
		rec.ContentType,
		rec.FileSize,
		rec.TextContent,
		rec.Score,
		rec.Metadata,
		rec.UploadIP,
		rec.UploadStatus,
		rec.ProcessingTimeMS,
		rec.Version,
		rec.IsCurrent,
		rec.ParentVersionID,
		rec.VersionComment,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		// Уникальный индекс (группа, версия) ловит проигранную гонку
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: version %d", ErrDuplicate, rec.Version)
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (t *fileTx) DemoteCurrent(recordID int64) error {
	query := `
        UPDATE file_uploads
        SET is_current = FALSE, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND is_current = TRUE`

	result, err := t.tx.ExecContext(t.ctx, query, recordID)
	if err != nil {
		return fmt.Errorf("failed to demote record %d: %w", recordID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: record %d is not current", ErrNotFound, recordID)
	}
	return nil
}

func (t *fileTx) LiveVersions(key domain.GroupKey) ([]domain.FileRecord, error) {
	var records []domain.FileRecord
	query := `
        SELECT ` + fileColumns + `
        FROM file_uploads
        WHERE original_filename = $1 AND folder_path = $2 AND owner_id = $3
        ORDER BY version DESC`

	err := t.tx.SelectContext(t.ctx, &records, query, key.OriginalFilename, key.FolderPath, key.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list live versions: %w", err)
	}
	return records, nil
}

func (t *fileTx) DeleteRecords(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM file_uploads WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	query = t.tx.Rebind(query)
	if _, err := t.tx.ExecContext(t.ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (t *fileTx) InsertHistory(entry *domain.HistoryEntry) error {
	return insertHistoryEntry(t.ctx, t.tx, entry)
}
