// containers.go — обработчики контейнеров:
// GET /api/v1/containers, POST /api/v1/containers/make-available,
// DELETE /api/v1/containers/session.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/availability-module/internal/api/errors"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/availability"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
)

// ContainerService — операции над контейнерами (реализуется service.Poller).
type ContainerService interface {
	Observe(did, namespace string) model.ContainerView
	View(did, namespace string) model.ContainerView
	RequestAvailability(ctx context.Context, did, namespace string) bool
	Release(did string)
	Active(did string) bool
}

// ContainerHandler — обработчик endpoints контейнеров.
type ContainerHandler struct {
	service  ContainerService
	resolver NamespaceResolver
	logger   *slog.Logger
}

// NewContainerHandler создаёт обработчик контейнеров.
func NewContainerHandler(service ContainerService, resolver NamespaceResolver, logger *slog.Logger) *ContainerHandler {
	return &ContainerHandler{
		service:  service,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "container_handler")),
	}
}

// makeAvailableRequest — тело POST /api/v1/containers/make-available.
type makeAvailableRequest struct {
	DID string `json:"did"`
}

// GetContainer обрабатывает GET /api/v1/containers?did=&namespace=.
// При первом обращении загружает набор файлов, при статусе REPLICATING запускает опрос.
func (h *ContainerHandler) GetContainer(w http.ResponseWriter, r *http.Request) {
	did := r.URL.Query().Get("did")
	if did == "" {
		apierrors.ValidationError(w, "Параметр did обязателен")
		return
	}

	namespace, ok := resolveNamespace(w, r, h.resolver)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.service.Observe(did, namespace))
}

// MakeAvailable обрабатывает POST /api/v1/containers/make-available.
// Действие допустимо только для статусов NOT_AVAILABLE и PARTIALLY_AVAILABLE.
func (h *ContainerHandler) MakeAvailable(w http.ResponseWriter, r *http.Request) {
	var req makeAvailableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.DID == "" {
		apierrors.ValidationError(w, "Поле did обязательно")
		return
	}

	namespace, ok := resolveNamespace(w, r, h.resolver)
	if !ok {
		return
	}

	// Observe загружает набор, если он ещё не загружен
	view := h.service.Observe(req.DID, namespace)
	if view.Status == model.ContainerNotLoaded {
		apierrors.CatalogError(w, "Не удалось получить статусы файлов контейнера из каталога")
		return
	}
	if !availability.CanMakeAvailable(view.Status) {
		apierrors.ActionNotAllowed(w, "Репликация недоступна для статуса "+string(view.Status))
		return
	}

	if !h.service.RequestAvailability(r.Context(), req.DID, namespace) {
		apierrors.CatalogError(w, "Каталог отклонил запрос репликации")
		return
	}

	h.logger.Info("Запрошена репликация контейнера",
		slog.String("did", req.DID),
		slog.String("namespace", namespace),
	)

	writeJSON(w, http.StatusAccepted, h.service.View(req.DID, namespace))
}

// ReleaseSession обрабатывает DELETE /api/v1/containers/session?did=.
// Останавливает сессию опроса независимо от статуса. Идемпотентно.
func (h *ContainerHandler) ReleaseSession(w http.ResponseWriter, r *http.Request) {
	did := r.URL.Query().Get("did")
	if did == "" {
		apierrors.ValidationError(w, "Параметр did обязателен")
		return
	}

	polling := h.service.Active(did)
	h.service.Release(did)

	h.logger.Debug("Представление контейнера закрыто",
		slog.String("did", did),
		slog.Bool("polling", polling),
	)
	w.WriteHeader(http.StatusNoContent)
}
