package esclient

import (
	"errors"
	"fmt"
)

// ErrorKind — классификация отказа Edustore API.
type ErrorKind string

const (
	// KindNetwork — транспортная ошибка: таймаут, обрыв соединения.
	KindNetwork ErrorKind = "network"
	// KindAuth — учётные данные отклонены или истекли (HTTP 401).
	// Единственный вид, запускающий обработчик завершения сессии.
	KindAuth ErrorKind = "auth"
	// KindNotFound — запись не найдена (HTTP 404).
	KindNotFound ErrorKind = "not_found"
	// KindServer — отказ приложения: 4xx/5xx либо success:false
	// при успешном HTTP-статусе.
	KindServer ErrorKind = "server"
	// KindDecode — ответ сервера не удалось разобрать.
	KindDecode ErrorKind = "decode"
)

// APIError — классифицированная ошибка запроса к Edustore API.
type APIError struct {
	// Kind — вид отказа.
	Kind ErrorKind
	// Status — HTTP-статус ответа (0 для сетевых ошибок).
	Status int
	// Message — сообщение из конверта ответа либо описание отказа.
	Message string
	// Err — первопричина (транспортная или ошибка декодирования).
	Err error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("edustore api: %s (статус %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("edustore api: %s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsKind возвращает true, если err — *APIError указанного вида.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == kind
}
