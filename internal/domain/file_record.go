package domain

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Статусы загрузки файла
const (
	UploadStatusSuccess    = "success"
	UploadStatusFailed     = "failed"
	UploadStatusProcessing = "processing"
	UploadStatusError      = "error"
	UploadStatusRestored   = "restored"
)

// GroupKey однозначно определяет логический файл: все версии одного файла
// разделяют тройку (имя, путь папки, владелец)
type GroupKey struct {
	OriginalFilename string
	FolderPath       string
	OwnerID          int64
}

// FileRecord представляет одну сохраненную версию логического файла
type FileRecord struct {
	ID               int64          `json:"id" db:"id"`
	OriginalFilename string         `json:"original_filename" db:"original_filename"`
	FolderPath       string         `json:"folder_path" db:"folder_path"`
	OwnerID          int64          `json:"owner_id" db:"owner_id"`
	S3Key            string         `json:"s3_key" db:"s3_key"`
	S3URL            string         `json:"s3_url" db:"s3_url"`
	ContentType      string         `json:"content_type" db:"content_type"`
	FileSize         int64          `json:"file_size" db:"file_size"`
	TextContent      *string        `json:"-" db:"text_content"`
	Score            float64        `json:"score" db:"score"`
	Metadata         types.JSONText `json:"metadata,omitempty" db:"metadata"`
	UploadIP         *string        `json:"upload_ip,omitempty" db:"upload_ip"`
	UploadStatus     string         `json:"upload_status" db:"upload_status"`
	ProcessingTimeMS float64        `json:"processing_time_ms" db:"processing_time_ms"`
	Version          int            `json:"version" db:"version"`
	IsCurrent        bool           `json:"is_current" db:"is_current"`
	ParentVersionID  *int64         `json:"parent_version_id,omitempty" db:"parent_version_id"`
	VersionComment   *string        `json:"version_comment,omitempty" db:"version_comment"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// Group возвращает логический ключ группы версий записи
func (r *FileRecord) Group() GroupKey {
	return GroupKey{
		OriginalFilename: r.OriginalFilename,
		FolderPath:       r.FolderPath,
		OwnerID:          r.OwnerID,
	}
}

// HistoryEntry — неизменяемый снимок версии в момент её вытеснения.
// Создается ровно один раз на вытесненную версию, удаляется только
// очисткой по сроку хранения.
type HistoryEntry struct {
	ID               int64          `json:"id" db:"id"`
	SourceRecordID   int64          `json:"source_record_id" db:"source_record_id"`
	OriginalFilename string         `json:"original_filename" db:"original_filename"`
	FolderPath       string         `json:"folder_path" db:"folder_path"`
	OwnerID          int64          `json:"owner_id" db:"owner_id"`
	S3Key            string         `json:"s3_key" db:"s3_key"`
	S3URL            string         `json:"s3_url" db:"s3_url"`
	ContentType      string         `json:"content_type" db:"content_type"`
	FileSize         int64          `json:"file_size" db:"file_size"`
	TextContent      *string        `json:"-" db:"text_content"`
	Score            float64        `json:"score" db:"score"`
	Metadata         types.JSONText `json:"metadata,omitempty" db:"metadata"`
	UploadIP         *string        `json:"upload_ip,omitempty" db:"upload_ip"`
	UploadStatus     string         `json:"upload_status" db:"upload_status"`
	Version          int            `json:"version" db:"version"`
	ArchiveReason    *string        `json:"archive_reason,omitempty" db:"archive_reason"`
	ArchivedAt       time.Time      `json:"archived_at" db:"archived_at"`
}

// RetentionPolicy задает пределы хранения версий и истории.
// MaxVersionsPerFile — жесткий лимит живых версий на группу (минимум 1).
// HistoryRetentionDays — срок хранения записей истории в днях, 0 отключает очистку.
type RetentionPolicy struct {
	MaxVersionsPerFile   int
	HistoryRetentionDays int
}

// AccessLogEntry фиксирует действие над файлом (скачивание, просмотр и т.д.)
type AccessLogEntry struct {
	ID        int64          `json:"id" db:"id"`
	RecordID  int64          `json:"record_id" db:"record_id"`
	S3Key     string         `json:"s3_key" db:"s3_key"`
	Action    string         `json:"action" db:"action"`
	ActionBy  int64          `json:"action_by" db:"action_by"`
	Details   types.JSONText `json:"details,omitempty" db:"details"`
	IPAddress *string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string        `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Действия, фиксируемые в журнале доступа
const (
	ActionDownload       = "download"
	ActionView           = "view"
	ActionVersionCreate  = "version_create"
	ActionVersionRestore = "version_restore"
	ActionDelete         = "delete"
)
