package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
	"github.com/bigkaa/goartstore/availability-module/internal/instance"
)

// --- Моки ---

// mockContainers — мок ContainerService.
type mockContainers struct {
	observeFn func(did, namespace string) model.ContainerView
	requestFn func(ctx context.Context, did, namespace string) bool
	released  []string
	requested []string
}

func (m *mockContainers) Observe(did, namespace string) model.ContainerView {
	if m.observeFn != nil {
		return m.observeFn(did, namespace)
	}
	return model.ContainerView{DID: did, Namespace: namespace, Status: model.ContainerAvailable}
}

func (m *mockContainers) View(did, namespace string) model.ContainerView {
	return model.ContainerView{DID: did, Namespace: namespace, Status: model.ContainerReplicating, Polling: true}
}

func (m *mockContainers) RequestAvailability(ctx context.Context, did, namespace string) bool {
	m.requested = append(m.requested, namespace+"/"+did)
	if m.requestFn != nil {
		return m.requestFn(ctx, did, namespace)
	}
	return true
}

func (m *mockContainers) Release(did string) {
	m.released = append(m.released, did)
}

func (m *mockContainers) Active(string) bool {
	return false
}

// staticResolver — NamespaceResolver с фиксированным значением.
type staticResolver string

func (s staticResolver) ActiveNamespace() (string, bool) {
	return string(s), s != ""
}

// mockIndex — мок FileIndex.
type mockIndex map[string]model.FileDetails

func (m mockIndex) FileDetails(did string) (model.FileDetails, bool) {
	d, ok := m[did]
	return d, ok
}

// mockInstances — мок InstanceService.
type mockInstances struct {
	list   []model.Instance
	err    error
	active *model.Instance
	setFn  func(ctx context.Context, name string) error
}

func (m *mockInstances) Instances() ([]model.Instance, error) {
	return m.list, m.err
}

func (m *mockInstances) Active() *model.Instance {
	return m.active
}

func (m *mockInstances) SetActive(ctx context.Context, name string) error {
	if m.setFn != nil {
		return m.setFn(ctx, name)
	}
	m.active = &model.Instance{Name: name}
	return nil
}

// newTestRouter собирает роутер с моками.
func newTestRouter(containers *mockContainers, resolver NamespaceResolver, index mockIndex, instances *mockInstances) http.Handler {
	logger := slog.Default()
	api := NewAPIHandler(
		NewHealthHandler(nil, ReadinessFunc(func() (string, string) { return "ok", "" })),
		NewContainerHandler(containers, resolver, logger),
		NewFileHandler(index),
		NewInstanceHandler(instances, logger),
		logger,
	)
	r := chi.NewRouter()
	api.Routes(r)
	return r
}

// errorCode извлекает код ошибки из тела ответа.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Ошибка декодирования тела ошибки: %v", err)
	}
	return body.Error.Code
}

// --- Контейнеры ---

// TestGetContainer_DefaultNamespace проверяет подстановку активного инстанса.
func TestGetContainer_DefaultNamespace(t *testing.T) {
	var gotNS string
	containers := &mockContainers{observeFn: func(did, ns string) model.ContainerView {
		gotNS = ns
		return model.ContainerView{DID: did, Namespace: ns, Status: model.ContainerStuck}
	}}
	router := newTestRouter(containers, staticResolver("atlas"), nil, &mockInstances{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/containers?did=c1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, ожидался 200", rec.Code)
	}
	if gotNS != "atlas" {
		t.Errorf("namespace = %q, ожидался atlas", gotNS)
	}

	var view model.ContainerView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("Ошибка декодирования: %v", err)
	}
	if view.Status != model.ContainerStuck {
		t.Errorf("status = %q, ожидался STUCK", view.Status)
	}
}

// TestGetContainer_NoActiveInstance проверяет 409 без namespace и активного инстанса.
func TestGetContainer_NoActiveInstance(t *testing.T) {
	router := newTestRouter(&mockContainers{}, staticResolver(""), nil, &mockInstances{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/containers?did=c1", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("Статус = %d, ожидался 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "NO_ACTIVE_INSTANCE" {
		t.Errorf("code = %q, ожидался NO_ACTIVE_INSTANCE", code)
	}
}

// TestGetContainer_MissingDID проверяет 400 без did.
func TestGetContainer_MissingDID(t *testing.T) {
	router := newTestRouter(&mockContainers{}, staticResolver("atlas"), nil, &mockInstances{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/containers", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Статус = %d, ожидался 400", rec.Code)
	}
}

// TestMakeAvailable проверяет коды ответа в зависимости от статуса и ответа каталога.
func TestMakeAvailable(t *testing.T) {
	tests := []struct {
		name       string
		status     model.ContainerStatus
		catalogOK  bool
		wantCode   int
		wantCalled bool
	}{
		{"NOT_AVAILABLE принят", model.ContainerNotAvailable, true, http.StatusAccepted, true},
		{"PARTIALLY_AVAILABLE принят", model.ContainerPartiallyAvailable, true, http.StatusAccepted, true},
		{"AVAILABLE запрещён", model.ContainerAvailable, true, http.StatusConflict, false},
		{"REPLICATING запрещён", model.ContainerReplicating, true, http.StatusConflict, false},
		{"ошибка каталога", model.ContainerNotAvailable, false, http.StatusBadGateway, true},
		{"набор не загружен", model.ContainerNotLoaded, true, http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			containers := &mockContainers{
				observeFn: func(did, ns string) model.ContainerView {
					return model.ContainerView{DID: did, Namespace: ns, Status: tt.status}
				},
				requestFn: func(context.Context, string, string) bool { return tt.catalogOK },
			}
			router := newTestRouter(containers, staticResolver("atlas"), nil, &mockInstances{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/containers/make-available?namespace=cms",
				strings.NewReader(`{"did":"c1"}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("Статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			if called := len(containers.requested) > 0; called != tt.wantCalled {
				t.Errorf("RequestAvailability вызван = %v, ожидалось %v", called, tt.wantCalled)
			}
			if tt.wantCalled && containers.requested[0] != "cms/c1" {
				t.Errorf("запрос = %q, ожидался cms/c1", containers.requested[0])
			}
		})
	}
}

// TestMakeAvailable_InvalidBody проверяет 400 при некорректном теле.
func TestMakeAvailable_InvalidBody(t *testing.T) {
	router := newTestRouter(&mockContainers{}, staticResolver("atlas"), nil, &mockInstances{})

	for _, body := range []string{`{`, `{}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/containers/make-available",
			strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("тело %q: статус = %d, ожидался 400", body, rec.Code)
		}
	}
}

// TestReleaseSession проверяет остановку сессии.
func TestReleaseSession(t *testing.T) {
	containers := &mockContainers{}
	router := newTestRouter(containers, staticResolver(""), nil, &mockInstances{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/containers/session?did=c1", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Статус = %d, ожидался 204", rec.Code)
	}
	if len(containers.released) != 1 || containers.released[0] != "c1" {
		t.Errorf("released = %v, ожидался [c1]", containers.released)
	}
}

// --- Файлы ---

// TestGetFile проверяет поиск в индексе деталей файлов.
func TestGetFile(t *testing.T) {
	index := mockIndex{"f1": {DID: "f1", Status: model.FileOK, Size: 42}}
	router := newTestRouter(&mockContainers{}, staticResolver(""), index, &mockInstances{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files?did=f1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, ожидался 200", rec.Code)
	}
	var got model.FileDetails
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Ошибка декодирования: %v", err)
	}
	if got.Size != 42 || got.Status != model.FileOK {
		t.Errorf("детали = %+v", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files?did=f2", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Статус = %d, ожидался 404", rec.Code)
	}
}

// --- Инстансы ---

// TestListInstances проверяет список и ошибку незагруженного реестра.
func TestListInstances(t *testing.T) {
	instances := &mockInstances{
		list:   []model.Instance{{Name: "atlas"}, {Name: "cms"}},
		active: &model.Instance{Name: "cms"},
	}
	router := newTestRouter(&mockContainers{}, staticResolver(""), nil, instances)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, ожидался 200", rec.Code)
	}
	var resp instanceListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Ошибка декодирования: %v", err)
	}
	if resp.ActiveInstance == nil || resp.ActiveInstance.Name != "cms" || len(resp.Instances) != 2 {
		t.Errorf("ответ = %+v", resp)
	}

	instances.err = instance.ErrNotLoaded
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Статус = %d, ожидался 503", rec.Code)
	}
}

// TestSetActiveInstance проверяет смену инстанса и неизвестное имя.
func TestSetActiveInstance(t *testing.T) {
	instances := &mockInstances{list: []model.Instance{{Name: "atlas"}}}
	router := newTestRouter(&mockContainers{}, staticResolver(""), nil, instances)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/instances",
		strings.NewReader(`{"instance":"atlas"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Статус = %d, ожидался 200", rec.Code)
	}
	if instances.active == nil || instances.active.Name != "atlas" {
		t.Errorf("активный = %+v, ожидался atlas", instances.active)
	}

	instances.setFn = func(context.Context, string) error {
		return fmt.Errorf("%w: %q", instance.ErrUnknownInstance, "lhcb")
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/instances",
		strings.NewReader(`{"instance":"lhcb"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Статус = %d, ожидался 404", rec.Code)
	}
}

// TestSetActiveInstance_NotLoaded проверяет 503 NOT_LOADED до загрузки списка инстансов.
func TestSetActiveInstance_NotLoaded(t *testing.T) {
	instances := &mockInstances{
		setFn: func(context.Context, string) error { return instance.ErrNotLoaded },
	}
	router := newTestRouter(&mockContainers{}, staticResolver(""), nil, instances)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/instances",
		strings.NewReader(`{"instance":"atlas"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Статус = %d, ожидался 503", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_LOADED" {
		t.Errorf("code = %q, ожидался NOT_LOADED", code)
	}
}

// --- Health ---

// TestHealthReady проверяет итоговый статус readiness.
func TestHealthReady(t *testing.T) {
	tests := []struct {
		name      string
		catalog   ReadinessChecker
		instances ReadinessChecker
		wantCode  int
	}{
		{"всё ok", ReadinessFunc(func() (string, string) { return "ok", "" }),
			ReadinessFunc(func() (string, string) { return "ok", "" }), http.StatusOK},
		{"каталог degraded", ReadinessFunc(func() (string, string) { return "degraded", "" }),
			ReadinessFunc(func() (string, string) { return "ok", "" }), http.StatusOK},
		{"каталог fail", ReadinessFunc(func() (string, string) { return "fail", "" }),
			ReadinessFunc(func() (string, string) { return "ok", "" }), http.StatusServiceUnavailable},
		{"мониторинг отключён", nil,
			ReadinessFunc(func() (string, string) { return "ok", "" }), http.StatusOK},
		{"нет проверки инстансов", nil, nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.catalog, tt.instances)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("Статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
		})
	}
}
