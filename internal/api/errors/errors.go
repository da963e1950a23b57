// Пакет errors — конструкторы стандартных ошибок в формате Artstore.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib, пакет импортируется под алиасом

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок Availability Module.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeNoActiveInstance = "NO_ACTIVE_INSTANCE"
	CodeActionNotAllowed = "ACTION_NOT_ALLOWED"
	CodeCatalogError     = "CATALOG_ERROR"
	CodeNotLoaded        = "NOT_LOADED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате Artstore.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
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

// NoActiveInstance — 409 namespace не указан и активный инстанс не выбран.
func NoActiveInstance(w http.ResponseWriter) {
	WriteError(w, http.StatusConflict, CodeNoActiveInstance, "Активный инстанс не выбран, укажите namespace")
}

// ActionNotAllowed — 409 действие недоступно в текущем статусе контейнера.
func ActionNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeActionNotAllowed, message)
}

// CatalogError — 502 каталог вернул ошибку.
func CatalogError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeCatalogError, message)
}

// NotLoaded — 503 данные ещё не загружены из каталога.
func NotLoaded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeNotLoaded, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
