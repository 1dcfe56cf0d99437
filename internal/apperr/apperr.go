// Package apperr определяет единую классификацию ошибок сервисного слоя.
// Публичные операции никогда не возвращают «сырые» ошибки хранилищ —
// только ошибки одного из перечисленных видов.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown — неклассифицированная внутренняя ошибка
	KindUnknown Kind = iota
	// KindValidation — некорректный ввод, исправляется вызывающей стороной
	KindValidation
	// KindNotFound — группа, версия или запись истории не существует
	KindNotFound
	// KindPermissionDenied — нет прав владельца или администратора
	KindPermissionDenied
	// KindConflict — проигранная гонка создания версии или повторная архивация
	KindConflict
	// KindStorage — отказ блочного хранилища
	KindStorage
	// KindPersistence — отказ транзакции хранилища метаданных
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error — классифицированная ошибка. Transient отмечает временные отказы
// хранилища (таймаут, троттлинг), которые имеет смысл повторять.
type Error struct {
	Kind      Kind
	Message   string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создает ошибку заданного вида
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает исходную ошибку, сохраняя её для диагностики
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WrapTransient помечает ошибку как временную (повторяемую с задержкой)
func WrapTransient(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err, Transient: true}
}

// KindOf возвращает вид ошибки; для неклассифицированных — KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is сообщает, относится ли ошибка к заданному виду
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransient сообщает, является ли отказ временным
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}
