// health.go — обработчики health endpoints Availability Module.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (каталог доступен, инстансы загружены)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goartstore/availability-module/internal/config"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// ReadinessFunc — адаптер функции к ReadinessChecker.
type ReadinessFunc func() (status, message string)

// CheckReady вызывает f.
func (f ReadinessFunc) CheckReady() (status, message string) {
	return f()
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	catalogChecker   ReadinessChecker
	instancesChecker ReadinessChecker
	promHandler      http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// catalogChecker — проверка каталога через dephealth (nil — мониторинг отключён, статус ok).
// instancesChecker — проверка загрузки инстансов (nil — readiness вернёт "fail").
func NewHealthHandler(catalogChecker, instancesChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		catalogChecker:   catalogChecker,
		instancesChecker: instancesChecker,
		promHandler:      promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Catalog   healthCheckResult `json:"catalog"`
		Instances healthCheckResult `json:"instances"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "availability-module",
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthReady — readiness probe. Проверяет каталог и реестр инстансов.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "availability-module",
	}

	if h.catalogChecker != nil {
		st, msg := h.catalogChecker.CheckReady()
		resp.Checks.Catalog = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks.Catalog = healthCheckResult{Status: "ok", Message: "мониторинг отключён"}
	}

	if h.instancesChecker != nil {
		st, msg := h.instancesChecker.CheckReady()
		resp.Checks.Instances = healthCheckResult{Status: st, Message: msg}
	} else {
		resp.Checks.Instances = healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}

	resp.Status = overallStatus(resp.Checks.Catalog.Status, resp.Checks.Instances.Status)

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// Константы статусов health check.
const statusFail = "fail"

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
