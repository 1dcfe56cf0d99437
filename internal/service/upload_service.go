package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
	"bookvault/internal/service/s3"
)

// Срок жизни временной ссылки на скачивание
const downloadURLTTL = 15 * time.Minute

// UploadService оркестрирует полный путь загрузки: валидация, обработка
// содержимого, запись в объектное хранилище и смена версии в метаданных.
// Порядок фиксирован: сначала блоб, потом метаданные. При отказе смены
// версии загруженный блоб удаляется компенсирующим действием.
type UploadService struct {
	storage        s3.Storage
	validator      *FileValidator
	processor      *ContentProcessor
	versionService *VersionService
	historyService *HistoryService
	fileRepo       FileLister
}

// FileLister — часть хранилища метаданных, нужная оркестратору напрямую
type FileLister interface {
	ListUploads(ctx context.Context, ownerID int64, folder string, limit, offset int) ([]domain.FileRecord, int64, error)
	DeleteGroup(ctx context.Context, key domain.GroupKey) (int64, error)
}

func NewUploadService(
	storage s3.Storage,
	validator *FileValidator,
	processor *ContentProcessor,
	versionService *VersionService,
	historyService *HistoryService,
	fileRepo FileLister,
) *UploadService {
	return &UploadService{
		storage:        storage,
		validator:      validator,
		processor:      processor,
		versionService: versionService,
		historyService: historyService,
		fileRepo:       fileRepo,
	}
}

// UploadInput — параметры одной загрузки
type UploadInput struct {
	Filename    string
	FolderPath  string
	OwnerID     int64
	Data        []byte
	ContentType string
	UploadIP    string
	UserAgent   string
	Comment     string
}

// Upload проводит файл через весь конвейер и возвращает созданную версию.
// Валидация отбивает файл до каких-либо записей: ни блоба, ни метаданных.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (*domain.FileRecord, error) {
	if err := s.validator.ValidateUpload(input.Filename, int64(len(input.Data))); err != nil {
		return nil, err
	}

	filename := SanitizeFilename(input.Filename)
	folder := SanitizeFolderPath(input.FolderPath)
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	processed := s.processor.Process(input.Data, contentType)

	key := buildObjectKey(input.OwnerID, folder, filename)
	url, err := s.storage.UploadBytes(ctx, key, input.Data, contentType)
	if err != nil {
		if s3.IsTransient(err) {
			return nil, apperr.WrapTransient(apperr.KindStorage, err, "failed to store file %s", filename)
		}
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to store file %s", filename)
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"extension":         strings.ToLower(filepath.Ext(filename)),
		"original_filename": input.Filename,
	})

	groupKey := domain.GroupKey{
		OriginalFilename: filename,
		FolderPath:       folder,
		OwnerID:          input.OwnerID,
	}
	versionInput := NewVersionInput{
		GroupKey:         groupKey,
		S3Key:            key,
		S3URL:            url,
		ContentType:      contentType,
		FileSize:         int64(len(input.Data)),
		Score:            processed.Score,
		Metadata:         metadata,
		UploadStatus:     domain.UploadStatusSuccess,
		ProcessingTimeMS: processed.ProcessingTimeMS,
	}
	if processed.TextContent != "" {
		versionInput.TextContent = &processed.TextContent
	}
	if input.UploadIP != "" {
		versionInput.UploadIP = &input.UploadIP
	}
	if input.Comment != "" {
		versionInput.VersionComment = &input.Comment
	}

	rec, err := s.versionService.CreateVersion(ctx, versionInput)
	if err != nil {
		// Метаданные не записались — убираем осиротевший блоб
		if delErr := s.storage.DeleteObject(context.WithoutCancel(ctx), key); delErr != nil {
			log.Printf("[UploadService] failed to delete orphaned object %s: %v", key, delErr)
		}
		return nil, err
	}

	s.historyService.LogAccess(ctx, rec, domain.ActionVersionCreate, input.OwnerID, input.UploadIP, input.UserAgent, map[string]interface{}{
		"version": rec.Version,
	})

	log.Printf("[UploadService] uploaded %s/%s as version %d (%d bytes, score %.2f)",
		folder, filename, rec.Version, rec.FileSize, rec.Score)
	return rec, nil
}

// buildObjectKey собирает ключ объекта. Префикс uuid гарантирует
// глобальную уникальность ключа между версиями одного файла.
func buildObjectKey(ownerID int64, folder, filename string) string {
	if folder != "" {
		return fmt.Sprintf("files/%d/%s/%s_%s", ownerID, folder, uuid.New().String(), filename)
	}
	return fmt.Sprintf("files/%d/%s_%s", ownerID, uuid.New().String(), filename)
}

// DownloadURL выдает временную ссылку на текущую версию файла
// и фиксирует скачивание в журнале доступа
func (s *UploadService) DownloadURL(ctx context.Context, key domain.GroupKey, actorID int64, ip, userAgent string) (string, *domain.FileRecord, error) {
	rec, err := s.versionService.GetCurrent(ctx, key)
	if err != nil {
		return "", nil, err
	}

	url, err := s.storage.PresignURL(ctx, rec.S3Key, downloadURLTTL)
	if err != nil {
		if s3.IsTransient(err) {
			return "", nil, apperr.WrapTransient(apperr.KindStorage, err, "failed to presign %s", rec.S3Key)
		}
		return "", nil, apperr.Wrap(apperr.KindStorage, err, "failed to presign %s", rec.S3Key)
	}

	s.historyService.LogAccess(ctx, rec, domain.ActionDownload, actorID, ip, userAgent, map[string]interface{}{
		"version": rec.Version,
	})
	return url, rec, nil
}

// GetObject отдает содержимое текущей версии файла потоком
func (s *UploadService) GetObject(ctx context.Context, key domain.GroupKey, actorID int64, ip, userAgent string) (s3.S3Object, *domain.FileRecord, error) {
	rec, err := s.versionService.GetCurrent(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	obj, err := s.storage.GetObject(ctx, rec.S3Key)
	if err != nil {
		if s3.IsTransient(err) {
			return nil, nil, apperr.WrapTransient(apperr.KindStorage, err, "failed to get object %s", rec.S3Key)
		}
		return nil, nil, apperr.Wrap(apperr.KindStorage, err, "failed to get object %s", rec.S3Key)
	}

	s.historyService.LogAccess(ctx, rec, domain.ActionView, actorID, ip, userAgent, nil)
	return obj, rec, nil
}

// ListUploads возвращает страницу загрузок владельца
func (s *UploadService) ListUploads(ctx context.Context, ownerID int64, folder string, limit, offset int) ([]domain.FileRecord, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.fileRepo.ListUploads(ctx, ownerID, SanitizeFolderPath(folder), limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindPersistence, err, "failed to list uploads")
	}
	return records, total, nil
}

// Delete удаляет логический файл целиком: все живые версии архивируются,
// блобы удаляются из хранилища, затем удаляются метаданные. Метаданные
// удаляются только после подтвержденного удаления всех блобов, иначе
// объект останется в хранилище без записи о нем. Уже заархивированные
// версии молча пропускаются.
func (s *UploadService) Delete(ctx context.Context, key domain.GroupKey, actorID int64, isAdmin bool, ip, userAgent string) error {
	records, err := s.versionService.ListVersions(ctx, key)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return apperr.New(apperr.KindNotFound, "file %s not found", key.OriginalFilename)
	}
	if records[0].OwnerID != actorID && !isAdmin {
		return apperr.New(apperr.KindPermissionDenied, "not allowed to delete this file")
	}

	for i := range records {
		rec := &records[i]
		if _, err := s.historyService.Archive(ctx, rec, "file_deleted"); err != nil {
			if apperr.KindOf(err) != apperr.KindConflict {
				return err
			}
		}
		if err := s.storage.DeleteObject(ctx, rec.S3Key); err != nil {
			log.Printf("[UploadService] failed to delete object %s: %v", rec.S3Key, err)
			if s3.IsTransient(err) {
				return apperr.WrapTransient(apperr.KindStorage, err, "failed to delete file %s from storage", key.OriginalFilename)
			}
			return apperr.Wrap(apperr.KindStorage, err, "failed to delete file %s from storage", key.OriginalFilename)
		}
	}

	deleted, err := s.fileRepo.DeleteGroup(ctx, key)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "failed to delete file %s", key.OriginalFilename)
	}

	s.historyService.LogAccess(ctx, &records[0], domain.ActionDelete, actorID, ip, userAgent, map[string]interface{}{
		"versions_deleted": deleted,
	})

	log.Printf("[UploadService] deleted %s/%s (owner %d), %d versions removed",
		key.FolderPath, key.OriginalFilename, key.OwnerID, deleted)
	return nil
}
