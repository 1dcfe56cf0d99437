package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
	"bookvault/internal/repository"
)

// Archiver создает снимок вытесняемой версии внутри транзакции смены
// версии и ведет журнал действий над файлами
type Archiver interface {
	ArchiveTx(tx repository.FileTx, rec *domain.FileRecord, reason string) (*domain.HistoryEntry, error)
	LogAccess(ctx context.Context, rec *domain.FileRecord, action string, actionBy int64, ip, userAgent string, details map[string]interface{})
}

// VersionService управляет цепочкой версий логического файла.
// Инварианты: не больше одной текущей версии на группу, номера версий
// монотонно растут, вытесненная версия архивируется в той же транзакции.
type VersionService struct {
	fileRepo      repository.FileStore
	archiver      Archiver
	configService *ConfigService
}

func NewVersionService(fileRepo repository.FileStore, archiver Archiver, configService *ConfigService) *VersionService {
	return &VersionService{
		fileRepo:      fileRepo,
		archiver:      archiver,
		configService: configService,
	}
}

// NewVersionInput — метаданные новой версии, подготовленные оркестратором
type NewVersionInput struct {
	GroupKey         domain.GroupKey
	S3Key            string
	S3URL            string
	ContentType      string
	FileSize         int64
	TextContent      *string
	Score            float64
	Metadata         []byte
	UploadIP         *string
	UploadStatus     string
	ProcessingTimeMS float64
	ParentVersionID  *int64
	VersionComment   *string
}

// CreateVersion атомарно делает новую запись текущей версией группы.
// Порядок внутри транзакции фиксирован: блокировка текущей версии,
// архивация вытесняемой, снятие с неё флага, вставка новой, усечение
// до лимита хранения. Конкурентные загрузки в одну группу
// сериализуются блокировкой строки текущей версии.
func (s *VersionService) CreateVersion(ctx context.Context, input NewVersionInput) (*domain.FileRecord, error) {
	if input.GroupKey.OriginalFilename == "" {
		return nil, apperr.New(apperr.KindValidation, "filename is required")
	}
	if input.S3Key == "" {
		return nil, apperr.New(apperr.KindValidation, "storage key is required")
	}
	if input.UploadStatus == "" {
		input.UploadStatus = domain.UploadStatusSuccess
	}

	policy := s.configService.RetentionPolicy(ctx)

	var created *domain.FileRecord
	err := s.fileRepo.InTx(ctx, func(tx repository.FileTx) error {
		current, err := tx.LockCurrent(input.GroupKey)
		if err != nil {
			return fmt.Errorf("failed to lock current version: %w", err)
		}

		nextVersion := 1
		if current != nil {
			nextVersion = current.Version + 1

			if _, err := s.archiver.ArchiveTx(tx, current, "version_superseded"); err != nil {
				return err
			}
			// Снимаем флаг со старой версии до вставки новой: частичный
			// уникальный индекс допускает только одну текущую строку группы
			if err := tx.DemoteCurrent(current.ID); err != nil {
				return fmt.Errorf("failed to demote version %d: %w", current.Version, err)
			}
		}

		rec := &domain.FileRecord{
			OriginalFilename: input.GroupKey.OriginalFilename,
			FolderPath:       input.GroupKey.FolderPath,
			OwnerID:          input.GroupKey.OwnerID,
			S3Key:            input.S3Key,
			S3URL:            input.S3URL,
			ContentType:      input.ContentType,
			FileSize:         input.FileSize,
			TextContent:      input.TextContent,
			Score:            input.Score,
			Metadata:         input.Metadata,
			UploadIP:         input.UploadIP,
			UploadStatus:     input.UploadStatus,
			ProcessingTimeMS: input.ProcessingTimeMS,
			Version:          nextVersion,
			IsCurrent:        true,
			ParentVersionID:  input.ParentVersionID,
			VersionComment:   input.VersionComment,
		}
		if err := tx.InsertRecord(rec); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.New(apperr.KindConflict, "version %d of %s already exists", nextVersion, input.GroupKey.OriginalFilename)
			}
			return fmt.Errorf("failed to insert version %d: %w", nextVersion, err)
		}

		if err := s.trimToLimit(tx, input.GroupKey, rec.ID, policy.MaxVersionsPerFile); err != nil {
			return err
		}

		created = rec
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to create version of %s", input.GroupKey.OriginalFilename)
	}

	log.Printf("[VersionService] created version %d of %s/%s (owner %d)",
		created.Version, created.FolderPath, created.OriginalFilename, created.OwnerID)
	return created, nil
}

// trimToLimit удаляет самые старые живые версии сверх лимита.
// Новая запись никогда не попадает под усечение.
func (s *VersionService) trimToLimit(tx repository.FileTx, key domain.GroupKey, keepID int64, maxVersions int) error {
	if maxVersions < 1 {
		maxVersions = 1
	}

	live, err := tx.LiveVersions(key)
	if err != nil {
		return fmt.Errorf("failed to list live versions: %w", err)
	}
	if len(live) <= maxVersions {
		return nil
	}

	sort.Slice(live, func(i, j int) bool { return live[i].Version < live[j].Version })

	excess := len(live) - maxVersions
	ids := make([]int64, 0, excess)
	for _, rec := range live {
		if len(ids) == excess {
			break
		}
		if rec.ID == keepID || rec.IsCurrent {
			continue
		}
		ids = append(ids, rec.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := tx.DeleteRecords(ids); err != nil {
		return fmt.Errorf("failed to trim versions: %w", err)
	}
	log.Printf("[VersionService] trimmed %d old versions of %s/%s (owner %d)",
		len(ids), key.FolderPath, key.OriginalFilename, key.OwnerID)
	return nil
}

// EnforceRetention усекает группу до лимита хранения вне загрузки.
// Обычно усечение происходит внутри CreateVersion; отдельный вызов
// нужен после снижения лимита max_file_versions администратором.
func (s *VersionService) EnforceRetention(ctx context.Context, key domain.GroupKey) error {
	if key.OriginalFilename == "" {
		return apperr.New(apperr.KindValidation, "filename is required")
	}

	policy := s.configService.RetentionPolicy(ctx)

	err := s.fileRepo.InTx(ctx, func(tx repository.FileTx) error {
		current, err := tx.LockCurrent(key)
		if err != nil {
			return fmt.Errorf("failed to lock current version: %w", err)
		}
		var keepID int64
		if current != nil {
			keepID = current.ID
		}
		return s.trimToLimit(tx, key, keepID, policy.MaxVersionsPerFile)
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.Wrap(apperr.KindPersistence, err, "failed to enforce retention for %s", key.OriginalFilename)
	}
	return nil
}

// GetCurrent возвращает текущую версию группы
func (s *VersionService) GetCurrent(ctx context.Context, key domain.GroupKey) (*domain.FileRecord, error) {
	rec, err := s.fileRepo.GetCurrent(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "file %s not found", key.OriginalFilename)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get current version")
	}
	return rec, nil
}

// GetByID возвращает запись версии по идентификатору
func (s *VersionService) GetByID(ctx context.Context, id int64) (*domain.FileRecord, error) {
	rec, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "file record %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get file record")
	}
	return rec, nil
}

// ListVersions возвращает живые версии группы от новых к старым
func (s *VersionService) ListVersions(ctx context.Context, key domain.GroupKey) ([]domain.FileRecord, error) {
	if key.OriginalFilename == "" {
		return nil, apperr.New(apperr.KindValidation, "filename is required")
	}
	records, err := s.fileRepo.ListVersions(ctx, key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to list versions")
	}
	return records, nil
}

// RestoreVersion делает содержимое старой версии новой текущей версией.
// Восстановление — всегда создание новой версии поверх цепочки, история
// никогда не откатывается назад. Восстанавливать может владелец или администратор.
func (s *VersionService) RestoreVersion(ctx context.Context, recordID int64, actorID int64, isAdmin bool, ip, userAgent string) (*domain.FileRecord, error) {
	source, err := s.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != actorID && !isAdmin {
		return nil, apperr.New(apperr.KindPermissionDenied, "not allowed to restore this file")
	}
	if source.IsCurrent {
		return nil, apperr.New(apperr.KindConflict, "version %d is already current", source.Version)
	}

	comment := fmt.Sprintf("restored from version %d", source.Version)
	input := NewVersionInput{
		GroupKey:         source.Group(),
		S3Key:            source.S3Key,
		S3URL:            source.S3URL,
		ContentType:      source.ContentType,
		FileSize:         source.FileSize,
		TextContent:      source.TextContent,
		Score:            source.Score,
		Metadata:         source.Metadata,
		UploadStatus:     domain.UploadStatusRestored,
		ProcessingTimeMS: source.ProcessingTimeMS,
		ParentVersionID:  &source.ID,
		VersionComment:   &comment,
	}

	restored, err := s.CreateVersion(ctx, input)
	if err != nil {
		return nil, err
	}

	s.archiver.LogAccess(ctx, restored, domain.ActionVersionRestore, actorID, ip, userAgent, map[string]interface{}{
		"restored_from_record":  source.ID,
		"restored_from_version": source.Version,
	})

	log.Printf("[VersionService] restored version %d of %s as version %d",
		source.Version, source.OriginalFilename, restored.Version)
	return restored, nil
}
