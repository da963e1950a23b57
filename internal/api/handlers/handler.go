// handler.go — основной обработчик API Availability Module.
// Объединяет health и бизнес-обработчики и регистрирует маршруты chi.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/availability-module/internal/api/errors"
)

// NamespaceResolver — источник namespace по умолчанию (активный инстанс).
type NamespaceResolver interface {
	ActiveNamespace() (string, bool)
}

// APIHandler — основной обработчик API Availability Module.
type APIHandler struct {
	health     *HealthHandler
	containers *ContainerHandler
	files      *FileHandler
	instances  *InstanceHandler
	logger     *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	containers *ContainerHandler,
	files *FileHandler,
	instances *InstanceHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:     health,
		containers: containers,
		files:      files,
		instances:  instances,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует все маршруты API на роутере.
func (h *APIHandler) Routes(r chi.Router) {
	// Health endpoints
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/containers", h.containers.GetContainer)
		r.Post("/containers/make-available", h.containers.MakeAvailable)
		r.Delete("/containers/session", h.containers.ReleaseSession)

		r.Get("/files", h.files.GetFile)

		r.Get("/instances", h.instances.ListInstances)
		r.Put("/instances", h.instances.SetActiveInstance)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// resolveNamespace возвращает namespace из query-параметра или активный инстанс.
// При отсутствии обоих пишет 409 NO_ACTIVE_INSTANCE и возвращает false.
func resolveNamespace(w http.ResponseWriter, r *http.Request, resolver NamespaceResolver) (string, bool) {
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		return ns, true
	}
	if resolver != nil {
		if ns, ok := resolver.ActiveNamespace(); ok {
			return ns, true
		}
	}
	apierrors.NoActiveInstance(w)
	return "", false
}
