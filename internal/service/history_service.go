package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
	"bookvault/internal/repository"
)

const defaultHistoryLimit = 100

// HistoryService ведет неизменяемый журнал вытесненных версий.
// Снимок создается ровно один раз на вытесненную версию и удаляется
// только очисткой по сроку хранения.
type HistoryService struct {
	historyRepo   repository.HistoryStore
	configService *ConfigService
	now           func() time.Time
}

func NewHistoryService(historyRepo repository.HistoryStore, configService *ConfigService) *HistoryService {
	return &HistoryService{
		historyRepo:   historyRepo,
		configService: configService,
		now:           time.Now,
	}
}

// snapshotOf копирует поля записи в новый снимок истории
func snapshotOf(rec *domain.FileRecord, reason string) *domain.HistoryEntry {
	entry := &domain.HistoryEntry{
		SourceRecordID:   rec.ID,
		OriginalFilename: rec.OriginalFilename,
		FolderPath:       rec.FolderPath,
		OwnerID:          rec.OwnerID,
		S3Key:            rec.S3Key,
		S3URL:            rec.S3URL,
		ContentType:      rec.ContentType,
		FileSize:         rec.FileSize,
		TextContent:      rec.TextContent,
		Score:            rec.Score,
		Metadata:         rec.Metadata,
		UploadIP:         rec.UploadIP,
		UploadStatus:     rec.UploadStatus,
		Version:          rec.Version,
	}
	if reason != "" {
		entry.ArchiveReason = &reason
	}
	return entry
}

// ArchiveTx создает снимок внутри транзакции смены версии: снимок обязан
// стать видимым не позже снятия флага текущей версии. Повторная архивация
// той же записи отбивается ограничением уникальности source_record_id.
func (s *HistoryService) ArchiveTx(tx repository.FileTx, rec *domain.FileRecord, reason string) (*domain.HistoryEntry, error) {
	entry := snapshotOf(rec, reason)
	if err := tx.InsertHistory(entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.KindConflict, "record %d is already archived", rec.ID)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to archive record %d", rec.ID)
	}
	return entry, nil
}

// Archive создает снимок вне транзакции смены версии (явная архивация)
func (s *HistoryService) Archive(ctx context.Context, rec *domain.FileRecord, reason string) (*domain.HistoryEntry, error) {
	entry := snapshotOf(rec, reason)
	if err := s.historyRepo.Insert(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.KindConflict, "record %d is already archived", rec.ID)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to archive record %d", rec.ID)
	}
	return entry, nil
}

// CanView сообщает, разрешен ли просмотр истории для данной роли.
// Доступ пользователей и администраторов отключается раздельно.
func (s *HistoryService) CanView(ctx context.Context, isAdmin bool) bool {
	if isAdmin {
		return s.configService.GetBool(ctx, ConfigAdminHistoryAccess, true)
	}
	return s.configService.GetBool(ctx, ConfigUserHistoryAccess, true)
}

// Query возвращает страницу истории группы по убыванию времени архивации.
// Размер страницы ограничен сверху параметром history_export_limit.
func (s *HistoryService) Query(ctx context.Context, key domain.GroupKey, limit, offset int) ([]domain.HistoryEntry, error) {
	if key.OriginalFilename == "" {
		return nil, apperr.New(apperr.KindValidation, "filename is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if max := s.configService.GetInt(ctx, ConfigHistoryExportLimit, 1000); limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.historyRepo.Query(ctx, key, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to query history")
	}
	return entries, nil
}

// PurgeExpired удаляет записи истории старше срока хранения.
// Нулевой срок отключает очистку. Запись ровно на границе сохраняется.
func (s *HistoryService) PurgeExpired(ctx context.Context, policy domain.RetentionPolicy) (int64, error) {
	if policy.HistoryRetentionDays == 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -policy.HistoryRetentionDays)
	deleted, err := s.historyRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindPersistence, err, "failed to purge expired history")
	}

	if deleted > 0 {
		log.Printf("[HistoryService] purged %d expired history entries", deleted)
	}
	return deleted, nil
}

// LogAccess фиксирует действие над файлом в журнале доступа.
// Для скачивания и просмотра журналирование можно отключить конфигурацией.
// Отказ журнала не прерывает основную операцию.
func (s *HistoryService) LogAccess(ctx context.Context, rec *domain.FileRecord, action string, actionBy int64, ip, userAgent string, details map[string]interface{}) {
	if !s.configService.IsLoggingEnabled(ctx, action) {
		return
	}

	entry := &domain.AccessLogEntry{
		RecordID: rec.ID,
		S3Key:    rec.S3Key,
		Action:   action,
		ActionBy: actionBy,
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err == nil {
			entry.Details = raw
		}
	}

	if err := s.historyRepo.InsertAccessLog(ctx, entry); err != nil {
		log.Printf("[HistoryService] failed to log %s action for record %d: %v", action, rec.ID, err)
	}
}
