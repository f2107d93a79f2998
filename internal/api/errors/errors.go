// Пакет errors — конструкторы стандартных ошибок фасада Admin Client.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок фасада.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeFileRejected    = "FILE_REJECTED"
	CodeAPIUnavailable  = "API_UNAVAILABLE"
	CodePartialFailure  = "PARTIAL_FAILURE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Reason — вид нарушения правил файла (TYPE, SIZE) для FILE_REJECTED.
	Reason string `json:"reason,omitempty"`
	// ResourceID — идентификатор созданного ресурса для PARTIAL_FAILURE:
	// повтор загрузки требует настоящий id.
	ResourceID string `json:"resource_id,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeBody(w, statusCode, errorDetail{Code: code, Message: message})
}

func writeBody(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (повтор выполняющейся отправки).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// FileRejected — 422 файл не прошёл валидацию.
// reason — вид нарушения: TYPE или SIZE.
func FileRejected(w http.ResponseWriter, message, reason string) {
	writeBody(w, http.StatusUnprocessableEntity, errorDetail{
		Code:    CodeFileRejected,
		Message: message,
		Reason:  reason,
	})
}

// APIUnavailable — сбой Edustore API.
// Клиентский статус сервера (4xx) передаётся как есть: оператор видит
// причину отказа; любой другой сбой отражается как 502.
func APIUnavailable(w http.ResponseWriter, message string, status int) {
	if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	WriteError(w, status, CodeAPIUnavailable, message)
}

// PartialFailure — 502 ресурс создан, файл не присоединён.
// resourceID — настоящий идентификатор для повторной загрузки.
func PartialFailure(w http.ResponseWriter, message, resourceID string) {
	writeBody(w, http.StatusBadGateway, errorDetail{
		Code:       CodePartialFailure,
		Message:    message,
		ResourceID: resourceID,
	})
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
