package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeDisabled     ErrorCode = "FEATURE_DISABLED"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал с копиями сентинелов.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation создаёт ошибку валидации с произвольным текстом.
func Validation(format string, args ...interface{}) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// Internal оборачивает неожиданную ошибку. Текст причины клиенту не показывается.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeDisabled:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// From приводит любую ошибку к AppError. Неизвестные ошибки становятся внутренними.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// PublicMessage возвращает текст, который можно отдать клиенту.
func PublicMessage(err error) string {
	appErr := From(err)
	if appErr.Code == ErrCodeInternal {
		return "внутренняя ошибка сервера"
	}
	return appErr.Message
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

var (
	ErrJobNotFound         = New(ErrCodeNotFound, "заказ не найден")
	ErrBidNotFound         = New(ErrCodeNotFound, "ставка не найдена")
	ErrTransactionNotFound = New(ErrCodeNotFound, "транзакция не найдена")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrDisputeActive       = New(ErrCodeConflict, "по заказу уже открыт спор")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidTransition   = New(ErrCodeConflict, "недопустимый переход статуса")
	ErrInvalidOTP          = New(ErrCodeValidation, "неверный код начала работ")
	ErrNotDisqualified     = New(ErrCodeConflict, "установщик не отстранён от заказа")
	ErrPaymentsDisabled    = New(ErrCodeDisabled, "платежи временно отключены")
	ErrAIDisabled          = New(ErrCodeDisabled, "AI генерация временно отключена")
	ErrDisputesDisabled    = New(ErrCodeDisabled, "споры временно отключены")
	ErrAIQuotaExceeded     = New(ErrCodeRateLimited, "дневной лимит AI запросов исчерпан")
)
