package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
)

func textUpload(filename string, body string) UploadInput {
	return UploadInput{
		Filename:    filename,
		FolderPath:  "docs",
		OwnerID:     3,
		Data:        []byte(body),
		ContentType: "text/plain",
		UploadIP:    "10.0.0.1",
	}
}

func TestUpload_HappyPath(t *testing.T) {
	env := newTestEnv()

	rec, err := env.uploadService.Upload(context.Background(), textUpload("notes.txt", "hello world, this is a test file"))
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", rec.OriginalFilename)
	assert.Equal(t, "docs", rec.FolderPath)
	assert.Equal(t, 1, rec.Version)
	assert.True(t, rec.IsCurrent)
	assert.Equal(t, domain.UploadStatusSuccess, rec.UploadStatus)
	assert.Positive(t, rec.Score)
	require.NotNil(t, rec.TextContent)
	assert.Contains(t, *rec.TextContent, "hello world")

	// Блоб лежит в хранилище под сгенерированным ключом
	assert.True(t, strings.HasPrefix(rec.S3Key, "files/3/docs/"))
	assert.True(t, strings.HasSuffix(rec.S3Key, "_notes.txt"))
	assert.True(t, env.storage.has(rec.S3Key))

	// Загрузка попала в журнал доступа
	require.Len(t, env.db.accessLogs, 1)
	assert.Equal(t, domain.ActionVersionCreate, env.db.accessLogs[0].Action)
}

func TestUpload_SanitizesNameAndFolder(t *testing.T) {
	env := newTestEnv()

	rec, err := env.uploadService.Upload(context.Background(), UploadInput{
		Filename:    `bad<file>na|me.txt`,
		FolderPath:  "../secret/../docs/",
		OwnerID:     3,
		Data:        []byte("content"),
		ContentType: "text/plain",
	})
	require.NoError(t, err)

	assert.Equal(t, "bad_file_na_me.txt", rec.OriginalFilename)
	assert.NotContains(t, rec.FolderPath, "..")
}

func TestUpload_ValidationFailsBeforeAnyWrite(t *testing.T) {
	env := newTestEnv()

	_, err := env.uploadService.Upload(context.Background(), textUpload("malware.exe", "x"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Ни блоба, ни метаданных, ни записей журнала
	assert.Empty(t, env.storage.objects)
	assert.Empty(t, env.db.records)
	assert.Empty(t, env.db.accessLogs)
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	env := newTestEnv()

	big := textUpload("big.txt", strings.Repeat("a", 11*1024*1024))
	_, err := env.uploadService.Upload(context.Background(), big)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, env.storage.objects)
}

func TestUpload_StorageFailureReturnsStorageError(t *testing.T) {
	env := newTestEnv()
	env.storage.failUpload = errors.New("connection refused")

	_, err := env.uploadService.Upload(context.Background(), textUpload("notes.txt", "x"))
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.Empty(t, env.db.records)
}

func TestUpload_CompensatesOrphanedBlob(t *testing.T) {
	env := newTestEnv()
	env.db.failInsertRecord = true

	_, err := env.uploadService.Upload(context.Background(), textUpload("notes.txt", "x"))
	require.Error(t, err)

	// Блоб был загружен и удален компенсирующим действием
	assert.Empty(t, env.storage.objects)
	require.Len(t, env.storage.deleted, 1)
	assert.True(t, strings.HasSuffix(env.storage.deleted[0], "_notes.txt"))
	assert.Empty(t, env.db.records)
}

func TestUpload_SecondUploadCreatesNewVersion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	v1, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "first"))
	require.NoError(t, err)
	v2, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "second"))
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	// У каждой версии свой ключ объекта
	assert.NotEqual(t, v1.S3Key, v2.S3Key)
	assert.True(t, env.storage.has(v1.S3Key))
	assert.True(t, env.storage.has(v2.S3Key))
}

func TestUpload_BinaryFileGetsSizeScore(t *testing.T) {
	env := newTestEnv()

	rec, err := env.uploadService.Upload(context.Background(), UploadInput{
		Filename:    "image.png",
		OwnerID:     3,
		Data:        make([]byte, 2*1024*1024),
		ContentType: "image/png",
	})
	require.NoError(t, err)

	assert.Nil(t, rec.TextContent)
	assert.InDelta(t, 2.0, rec.Score, 0.01)
}

func TestDownloadURL_LogsAccess(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	rec, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "content"))
	require.NoError(t, err)

	url, got, err := env.uploadService.DownloadURL(ctx, rec.Group(), rec.OwnerID, "10.0.0.1", "agent")
	require.NoError(t, err)
	assert.Contains(t, url, "presigned")
	assert.Equal(t, rec.ID, got.ID)

	// version_create + download
	require.Len(t, env.db.accessLogs, 2)
	assert.Equal(t, domain.ActionDownload, env.db.accessLogs[1].Action)
}

func TestDownloadURL_UnknownFile(t *testing.T) {
	env := newTestEnv()

	_, _, err := env.uploadService.DownloadURL(context.Background(), testGroupKey(), 7, "", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDelete_RemovesGroupAndBlobs(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	v1, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "first"))
	require.NoError(t, err)
	v2, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "second"))
	require.NoError(t, err)

	err = env.uploadService.Delete(ctx, v2.Group(), v2.OwnerID, false, "10.0.0.1", "agent")
	require.NoError(t, err)

	assert.Empty(t, env.db.records)
	assert.False(t, env.storage.has(v1.S3Key))
	assert.False(t, env.storage.has(v2.S3Key))

	// Обе версии остались в истории
	entries, err := env.historyService.Query(ctx, v2.Group(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDelete_BlobFailureKeepsMetadata(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	rec, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "content"))
	require.NoError(t, err)

	env.storage.failDelete = errors.New("access denied")
	err = env.uploadService.Delete(ctx, rec.Group(), rec.OwnerID, false, "", "")
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	// Блоб не удален — метаданные обязаны остаться
	assert.NotEmpty(t, env.db.records)
	assert.True(t, env.storage.has(rec.S3Key))

	current, err := env.versionService.GetCurrent(ctx, rec.Group())
	require.NoError(t, err)
	assert.Equal(t, rec.ID, current.ID)

	// После восстановления хранилища удаление проходит до конца
	env.storage.failDelete = nil
	require.NoError(t, env.uploadService.Delete(ctx, rec.Group(), rec.OwnerID, false, "", ""))
	assert.Empty(t, env.db.records)
	assert.False(t, env.storage.has(rec.S3Key))
}

func TestDelete_OwnershipEnforced(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	rec, err := env.uploadService.Upload(ctx, textUpload("notes.txt", "content"))
	require.NoError(t, err)

	err = env.uploadService.Delete(ctx, rec.Group(), 999, false, "", "")
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
	assert.NotEmpty(t, env.db.records)

	err = env.uploadService.Delete(ctx, rec.Group(), 999, true, "", "")
	require.NoError(t, err)
}

func TestDelete_UnknownFile(t *testing.T) {
	env := newTestEnv()

	err := env.uploadService.Delete(context.Background(), testGroupKey(), 7, false, "", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListUploads_PagesCurrentVersions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := env.uploadService.Upload(ctx, textUpload(name, "content"))
		require.NoError(t, err)
	}
	// Вторая версия одного из файлов не должна удваивать список
	_, err := env.uploadService.Upload(ctx, textUpload("a.txt", "updated"))
	require.NoError(t, err)

	records, total, err := env.uploadService.ListUploads(ctx, 3, "docs", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, records, 2)
}
