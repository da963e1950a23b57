package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/goartstore/availability-module/internal/config"
)

// routesFunc — адаптер функции к RouteRegistrar.
type routesFunc func(r chi.Router)

func (f routesFunc) Routes(r chi.Router) { f(r) }

func testConfig() *config.Config {
	return &config.Config{
		Port:             0,
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: time.Second,
		HTTPIdleTimeout:  time.Second,
		ShutdownTimeout:  time.Second,
	}
}

// TestNew_RoutesAndMiddleware проверяет регистрацию маршрутов и порядок middleware.
func TestNew_RoutesAndMiddleware(t *testing.T) {
	var reqID string
	var order []string

	api := routesFunc(func(r chi.Router) {
		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			reqID = chimw.GetReqID(r.Context())
			w.WriteHeader(http.StatusOK)
		})
		r.Get("/panic", func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})
	})

	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	srv := New(testConfig(), slog.Default(), api, mark("first"), mark("second"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, ожидался 200", rec.Code)
	}
	if reqID == "" {
		t.Error("request id не установлен")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("порядок middleware = %v", order)
	}

	// Recoverer превращает панику обработчика в 500
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Статус = %d, ожидался 500", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Статус = %d, ожидался 404", rec.Code)
	}
}
