// Пакет model — доменные модели Availability Module.
// FileDetails — статус репликации одного файла, ContainerStatus — производный статус контейнера.
package model

import (
	"encoding/json"
	"fmt"
)

// FileStatus — статус репликации файла в каталоге (значение из API Catalog Query Service).
type FileStatus string

const (
	// FileOK — файл доступен локально
	FileOK FileStatus = "OK"
	// FileNotAvailable — файл не реплицирован
	FileNotAvailable FileStatus = "NOT_AVAILABLE"
	// FileReplicating — репликация файла выполняется
	FileReplicating FileStatus = "REPLICATING"
	// FileStuck — репликация зависла
	FileStuck FileStatus = "STUCK"
)

// ContainerStatus — статус контейнера, вычисляемый из набора статусов файлов.
type ContainerStatus string

const (
	ContainerAvailable          ContainerStatus = "AVAILABLE"
	ContainerPartiallyAvailable ContainerStatus = "PARTIALLY_AVAILABLE"
	ContainerNotAvailable       ContainerStatus = "NOT_AVAILABLE"
	ContainerReplicating        ContainerStatus = "REPLICATING"
	ContainerStuck              ContainerStatus = "STUCK"
	// ContainerUnknown — в наборе есть файл с нераспознанным статусом
	ContainerUnknown ContainerStatus = "UNKNOWN"
	// ContainerNotLoaded — набор файлов ещё не получен (отображается индикатор загрузки)
	ContainerNotLoaded ContainerStatus = "NOT_LOADED"
)

// FileDetails — запись о файле контейнера, полученная от Catalog Query Service.
// Неизменяемый снимок: при каждом запросе набор заменяется целиком.
type FileDetails struct {
	// DID — идентификатор файла (scope:name)
	DID string `json:"did"`
	// Status — статус репликации
	Status FileStatus `json:"status"`
	// Size — размер файла в байтах (если сервис его сообщает)
	Size int64 `json:"size,omitempty"`
}

// Instance — инстанс (namespace) каталога, к которому адресуются запросы.
type Instance struct {
	// Name — имя инстанса, передаётся как namespace
	Name string `json:"name"`
	// DisplayName — человекочитаемое имя
	DisplayName string `json:"display_name,omitempty"`
}

// IsValid проверяет, является ли статус одним из известных значений.
func (s FileStatus) IsValid() bool {
	switch s {
	case FileOK, FileNotAvailable, FileReplicating, FileStuck:
		return true
	default:
		return false
	}
}

// StatusError — статус файла вне известного набора.
type StatusError struct {
	Value string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("недопустимый статус файла: %q, допустимые: OK, NOT_AVAILABLE, REPLICATING, STUCK", e.Value)
}

// ParseFileStatus преобразует строку в FileStatus.
// Возвращает *StatusError для нераспознанных значений.
func ParseFileStatus(s string) (FileStatus, error) {
	st := FileStatus(s)
	if !st.IsValid() {
		return "", &StatusError{Value: s}
	}
	return st, nil
}

// UnmarshalJSON строго разбирает статус: неизвестные значения — ошибка декодирования.
func (s *FileStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseFileStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ContainerView — состояние контейнера для слоя отображения.
type ContainerView struct {
	// DID — идентификатор контейнера
	DID string `json:"did"`
	// Namespace — инстанс, в котором запрашивается контейнер
	Namespace string `json:"namespace"`
	// Status — производный статус контейнера
	Status ContainerStatus `json:"status"`
	// Files — текущий набор файлов (nil — не загружен)
	Files []FileDetails `json:"files"`
	// Polling — активна ли сессия опроса
	Polling bool `json:"polling"`
	// SessionID — идентификатор сессии опроса
	SessionID string `json:"session_id,omitempty"`
	// Actions — доступные действия
	Actions ContainerActions `json:"actions"`
}

// ContainerActions — действия, доступные для контейнера в текущем статусе.
type ContainerActions struct {
	MakeAvailable bool `json:"make_available"`
}
