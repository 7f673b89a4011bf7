package services

import "errors"

// Ошибки операций стены. Проверяются через errors.Is, оборачиваются с %w.
var (
	// ErrValidation - пустой контент и прочие невалидные входные данные,
	// отклоняются до любой оптимистичной мутации
	ErrValidation = errors.New("validation failed")

	// ErrNotFound - целевая сущность неизвестна
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidTransition - недопустимый переход статуса модерации
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNetwork - запрос подтверждения не дошел до сервера, оптимистичная
	// мутация откатывается
	ErrNetwork = errors.New("network error")

	// ErrAuth - нет токена или токен невалиден
	ErrAuth = errors.New("authentication required")

	// ErrForbidden - действие доступно только модераторам
	ErrForbidden = errors.New("forbidden")
)
