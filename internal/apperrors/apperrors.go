// Package apperrors определяет классификацию ошибок ядра: обработчики HTTP
// отображают Kind в статус, сервисы никогда не проглатывают ошибки молча.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind определяет класс ошибки
type Kind int

const (
	// KindInternal — неклассифицированная ошибка
	KindInternal Kind = iota
	// KindValidation — некорректный ввод, повтор бессмыслен
	KindValidation
	// KindPermission — у вызывающего нет прав
	KindPermission
	// KindConflict — конкурентное или дублирующее изменение; нужно перечитать состояние
	KindConflict
	// KindNotFound — устаревшая ссылка
	KindNotFound
	// KindDependency — сбой внешнего коллаборатора; уже примененные переходы не откатываются
	KindDependency
)

// Error — ошибка ядра с классом и необязательной причиной
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation создает ошибку валидации
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Permission создает ошибку прав доступа
func Permission(format string, args ...any) error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

// Conflict создает ошибку конфликта состояния
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound создает ошибку отсутствующей записи
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Dependency оборачивает сбой внешнего коллаборатора
func Dependency(err error, format string, args ...any) error {
	return &Error{Kind: KindDependency, Message: fmt.Sprintf(format, args...), Err: err}
}

// Internal оборачивает неклассифицированную ошибку
func Internal(err error, format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf возвращает класс ошибки; для посторонних ошибок — KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind проверяет принадлежность ошибки классу
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
