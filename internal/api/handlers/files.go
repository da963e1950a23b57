// files.go — обработчик GET /api/v1/files: детали файла из индекса.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/goartstore/availability-module/internal/api/errors"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
)

// FileIndex — индекс деталей файлов (реализуется store.Store).
type FileIndex interface {
	FileDetails(did string) (model.FileDetails, bool)
}

// FileHandler — обработчик endpoint деталей файла.
type FileHandler struct {
	index FileIndex
}

// NewFileHandler создаёт обработчик деталей файла.
func NewFileHandler(index FileIndex) *FileHandler {
	return &FileHandler{index: index}
}

// GetFile обрабатывает GET /api/v1/files?did=.
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	did := r.URL.Query().Get("did")
	if did == "" {
		apierrors.ValidationError(w, "Параметр did обязателен")
		return
	}

	details, ok := h.index.FileDetails(did)
	if !ok {
		apierrors.NotFound(w, "Файл не найден в индексе: "+did)
		return
	}

	writeJSON(w, http.StatusOK, details)
}
