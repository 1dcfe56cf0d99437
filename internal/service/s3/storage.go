// storage.go
package s3

import (
	"context"
	"io"
	"time"
)

// S3Object определяет интерфейс для объектов S3
type S3Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// s3Object реализует интерфейс S3Object
type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем.
// Ключи — непрозрачные строки; повторная загрузка с тем же ключом
// перезаписывает объект, удаление отсутствующего объекта не считается ошибкой.
type Storage interface {
	// UploadBytes загружает данные и возвращает подписанный URL объекта
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
	GetObject(ctx context.Context, key string) (S3Object, error)
	DeleteObject(ctx context.Context, key string) error
	// PresignURL выдает временную ссылку на скачивание объекта
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
