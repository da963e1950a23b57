// instances.go — обработчики GET/PUT /api/v1/instances.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/availability-module/internal/api/errors"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
	"github.com/bigkaa/goartstore/availability-module/internal/instance"
)

// InstanceService — реестр инстансов (реализуется instance.Registry).
type InstanceService interface {
	Instances() ([]model.Instance, error)
	Active() *model.Instance
	SetActive(ctx context.Context, name string) error
}

// InstanceHandler — обработчик endpoints инстансов.
type InstanceHandler struct {
	registry InstanceService
	logger   *slog.Logger
}

// NewInstanceHandler создаёт обработчик инстансов.
func NewInstanceHandler(registry InstanceService, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{
		registry: registry,
		logger:   logger.With(slog.String("component", "instance_handler")),
	}
}

// instanceListResponse — ответ GET /api/v1/instances.
type instanceListResponse struct {
	ActiveInstance *model.Instance  `json:"active_instance,omitempty"`
	Instances      []model.Instance `json:"instances"`
}

// setInstanceRequest — тело PUT /api/v1/instances.
type setInstanceRequest struct {
	Instance string `json:"instance"`
}

// ListInstances обрабатывает GET /api/v1/instances.
func (h *InstanceHandler) ListInstances(w http.ResponseWriter, _ *http.Request) {
	list, err := h.registry.Instances()
	if err != nil {
		if errors.Is(err, instance.ErrNotLoaded) {
			apierrors.NotLoaded(w, "Список инстансов ещё не загружен из каталога")
			return
		}
		h.logger.Error("Ошибка получения инстансов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения инстансов")
		return
	}

	writeJSON(w, http.StatusOK, instanceListResponse{
		ActiveInstance: h.registry.Active(),
		Instances:      list,
	})
}

// SetActiveInstance обрабатывает PUT /api/v1/instances.
func (h *InstanceHandler) SetActiveInstance(w http.ResponseWriter, r *http.Request) {
	var req setInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Instance == "" {
		apierrors.ValidationError(w, "Поле instance обязательно")
		return
	}

	err := h.registry.SetActive(r.Context(), req.Instance)
	switch {
	case errors.Is(err, instance.ErrUnknownInstance):
		apierrors.NotFound(w, "Неизвестный инстанс: "+req.Instance)
		return
	case errors.Is(err, instance.ErrNotLoaded):
		apierrors.NotLoaded(w, "Список инстансов ещё не загружен из каталога")
		return
	case err != nil:
		h.logger.Error("Ошибка смены инстанса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка смены инстанса")
		return
	}

	writeJSON(w, http.StatusOK, instanceListResponse{
		ActiveInstance: h.registry.Active(),
		Instances:      instancesOrEmpty(h.registry),
	})
}

// instancesOrEmpty возвращает список инстансов или пустой срез.
func instancesOrEmpty(registry InstanceService) []model.Instance {
	list, err := registry.Instances()
	if err != nil {
		return []model.Instance{}
	}
	return list
}
