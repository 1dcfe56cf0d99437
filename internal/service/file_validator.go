package service

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"bookvault/internal/apperr"
)

const maxFilenameLength = 255

// Символы, запрещенные в именах файлов
const invalidFilenameChars = `<>:"/\|?*`

// FileValidator проверяет входные параметры загрузки до обращения
// к какому-либо хранилищу
type FileValidator struct {
	maxFileSize       int64
	allowedExtensions map[string]struct{}
}

// NewFileValidator создает валидатор. Расширения задаются группами
// (image, document, ...) из статической конфигурации.
func NewFileValidator(maxFileSize int64, extensionGroups map[string][]string) *FileValidator {
	allowed := make(map[string]struct{})
	for _, group := range extensionGroups {
		for _, ext := range group {
			allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
		}
	}
	return &FileValidator{
		maxFileSize:       maxFileSize,
		allowedExtensions: allowed,
	}
}

// ValidateUpload проверяет имя, размер и расширение файла
func (v *FileValidator) ValidateUpload(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return apperr.New(apperr.KindValidation, "filename is required")
	}

	if size <= 0 {
		return apperr.New(apperr.KindValidation, "file is empty")
	}
	if size > v.maxFileSize {
		return apperr.New(apperr.KindValidation,
			"file size too large, maximum allowed: %dMB", v.maxFileSize/(1024*1024))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return apperr.New(apperr.KindValidation, "file must have an extension")
	}
	if _, ok := v.allowedExtensions[ext]; !ok {
		return apperr.New(apperr.KindValidation, "file type %q not allowed", ext)
	}

	return nil
}

// SanitizeFilename заменяет запрещенные символы и ограничивает длину имени
func SanitizeFilename(filename string) string {
	var b strings.Builder
	b.Grow(len(filename))
	for _, r := range filename {
		if strings.ContainsRune(invalidFilenameChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}

	sanitized := b.String()
	if len(sanitized) > maxFilenameLength {
		// Обрезаем по границе руны, чтобы не разорвать многобайтовый символ
		cut := maxFilenameLength
		for cut > 0 && !utf8.RuneStart(sanitized[cut]) {
			cut--
		}
		sanitized = sanitized[:cut]
	}
	return sanitized
}

// SanitizeFolderPath приводит путь папки к безопасному для ключей
// хранилища виду: без ведущих/замыкающих слешей и попыток выхода вверх
func SanitizeFolderPath(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}

	parts := strings.Split(folder, "/")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		clean = append(clean, SanitizeFilename(part))
	}
	return strings.Join(clean, "/")
}
