// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrSubmissionInFlight — отправка с таким ключом уже выполняется.
	ErrSubmissionInFlight = errors.New("отправка с этим ключом уже выполняется")
	// ErrMissingKey — ключ отправки не передан.
	ErrMissingKey = errors.New("ключ отправки не передан")
	// ErrAccessDenied — отказ шлюза доступа на пути чтения.
	ErrAccessDenied = errors.New("доступ запрещён")
	// ErrInvalidDraft — черновик не прошёл валидацию метаданных.
	ErrInvalidDraft = errors.New("ошибка валидации черновика")
	// ErrUnsupportedModule — модуль не поддерживает запрошенную операцию.
	ErrUnsupportedModule = errors.New("модуль не поддерживает операцию")
	// ErrMissingFile — операция требует файл, но он не передан.
	ErrMissingFile = errors.New("файл не передан")
	// ErrMissingResourceID — операция требует идентификатор ресурса.
	ErrMissingResourceID = errors.New("идентификатор ресурса не передан")
)
