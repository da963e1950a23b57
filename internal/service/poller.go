// poller.go — сервис опроса доступности контейнеров.
//
// Poller поддерживает набор статусов файлов контейнера актуальным ровно пока
// производный статус контейнера — REPLICATING:
//  1. StartSession — немедленный refresh(poll=true), затем ticker с интервалом AV_POLL_INTERVAL
//  2. На каждом тике — refresh + DeriveStatus; любой статус кроме REPLICATING завершает сессию
//  3. Ошибка запроса к каталогу логируется, состояние не меняется, сессия продолжается
//
// На каждый DID — не более одной сессии (map DID → session с context.CancelFunc).
// Наборы в Store разделены по namespace; сессия опрашивает свой namespace, и запуск
// сессии для того же DID в другом namespace заменяет прежнюю.
// StopSession прекращает будущие тики, но не отменяет уже выполняющийся запрос:
// его результат всё равно записывается в Store.
//
// Prometheus-метрики:
//   - av_poll_sessions_active — количество активных сессий
//   - av_refresh_total — запросы статусов файлов (по режиму и результату)
//   - av_replication_requests_total — команды репликации (по результату)
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/goartstore/availability-module/internal/catalogclient"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/availability"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
	"github.com/bigkaa/goartstore/availability-module/internal/store"
)

// DefaultPollInterval — интервал опроса контейнера в состоянии REPLICATING.
const DefaultPollInterval = 10 * time.Second

// Prometheus-метрики опроса.
var (
	pollSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "av_poll_sessions_active",
		Help: "Количество активных сессий опроса контейнеров.",
	})
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "av_refresh_total",
		Help: "Количество запросов статусов файлов контейнеров.",
	}, []string{"mode", "result"}) // mode: load, poll; result: ok, error, unrecognized
	replicationRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "av_replication_requests_total",
		Help: "Количество команд репликации контейнеров.",
	}, []string{"result"})
)

// Catalog — операции Catalog Query Service, нужные Poller.
type Catalog interface {
	ListFiles(ctx context.Context, namespace, did string, poll bool) ([]model.FileDetails, error)
	MakeAvailable(ctx context.Context, namespace, did string) error
}

// NamespaceResolver — источник активного namespace (реестр инстансов).
type NamespaceResolver interface {
	ActiveNamespace() (string, bool)
}

// session — сессия опроса одного контейнера.
type session struct {
	id        string
	did       string
	namespace string
	cancel    context.CancelFunc
}

// Poller — сервис опроса доступности контейнеров.
type Poller struct {
	catalog   Catalog
	store     *store.Store
	resolver  NamespaceResolver
	clock     clockwork.Clock
	interval  time.Duration
	logger    *slog.Logger
	loadGroup singleflight.Group

	// ctx — корневой контекст запросов к каталогу, отменяется только в Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewPoller создаёт сервис опроса.
//
// Параметры:
//   - catalog: клиент Catalog Query Service
//   - st: общее состояние
//   - resolver: источник активного namespace для StartSession
//   - interval: интервал опроса (AV_POLL_INTERVAL), <= 0 — DefaultPollInterval
//   - clock: часы (nil — реальные), в тестах — clockwork.FakeClock
//   - logger: логгер
func NewPoller(
	catalog Catalog,
	st *store.Store,
	resolver NamespaceResolver,
	interval time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		catalog:  catalog,
		store:    st,
		resolver: resolver,
		clock:    clock,
		interval: interval,
		logger:   logger.With(slog.String("component", "poller")),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
}

// Refresh запрашивает статусы файлов контейнера и обновляет Store:
// индекс файлов — только записями со статусом OK, набор контейнера — целиком.
// Ошибка логируется и не возвращается: (nil, false), прежнее состояние не меняется.
func (p *Poller) Refresh(ctx context.Context, did, namespace string, poll bool) ([]model.FileDetails, bool) {
	mode := "load"
	if poll {
		mode = "poll"
	}

	files, err := p.catalog.ListFiles(ctx, namespace, did, poll)
	if err != nil {
		if errors.Is(err, catalogclient.ErrUnrecognizedStatus) {
			refreshTotal.WithLabelValues(mode, "unrecognized").Inc()
			p.logger.Error("Каталог вернул нераспознанный статус файла",
				slog.String("did", did),
				slog.String("namespace", namespace),
				slog.String("error", err.Error()),
			)
			return nil, false
		}
		refreshTotal.WithLabelValues(mode, "error").Inc()
		p.logger.Warn("Ошибка получения статусов файлов",
			slog.String("did", did),
			slog.String("namespace", namespace),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	refreshTotal.WithLabelValues(mode, "ok").Inc()

	// Статусы, отличные от OK, не совпадают со статусом файла вне контейнера
	p.store.MergeFileDetails(okOnly(files))
	p.store.SetContainerFiles(namespace, did, files)

	p.logger.Debug("Статусы файлов обновлены",
		slog.String("did", did),
		slog.Int("files", len(files)),
		slog.Bool("poll", poll),
	)
	return files, true
}

// StartSession запускает опрос контейнера в активном namespace.
// Идемпотентен: при уже активной сессии для did ничего не делает.
func (p *Poller) StartSession(did string) {
	namespace, ok := p.resolver.ActiveNamespace()
	if !ok {
		p.logger.Warn("Сессия опроса не запущена: активный инстанс не выбран",
			slog.String("did", did),
		)
		return
	}
	p.startSession(did, namespace, true)
}

// StopSession останавливает опрос контейнера. Безопасен при отсутствии сессии.
func (p *Poller) StopSession(did string) {
	p.mu.Lock()
	s, ok := p.sessions[did]
	if ok {
		delete(p.sessions, did)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	s.cancel()

	p.logger.Debug("Сессия опроса остановлена",
		slog.String("did", did),
		slog.String("session_id", s.id),
	)
}

// RequestAvailability запрашивает репликацию контейнера.
// Сначала оптимистично помечает все файлы, кроме OK, как REPLICATING,
// затем отправляет команду в каталог и при успехе запускает сессию опроса.
// Ошибка команды логируется, оптимистичное состояние не откатывается.
func (p *Poller) RequestAvailability(ctx context.Context, did, namespace string) bool {
	if current := p.store.ContainerFiles(namespace, did); current != nil {
		p.store.SetContainerFiles(namespace, did, availability.OptimisticReplicating(current))
	}

	if err := p.catalog.MakeAvailable(ctx, namespace, did); err != nil {
		replicationRequestsTotal.WithLabelValues("error").Inc()
		p.logger.Error("Ошибка запроса репликации",
			slog.String("did", did),
			slog.String("namespace", namespace),
			slog.String("error", err.Error()),
		)
		return false
	}
	replicationRequestsTotal.WithLabelValues("ok").Inc()

	p.logger.Info("Репликация контейнера запрошена",
		slog.String("did", did),
		slog.String("namespace", namespace),
	)

	p.startSession(did, namespace, true)
	return true
}

// Observe — подключение представления контейнера.
// Незагруженный набор загружается одним запросом (poll=false), параллельные
// вызовы для одного DID разделяют этот запрос. Если статус — REPLICATING,
// запускается сессия опроса. Сессия того же DID в другом namespace останавливается:
// представление переключилось на новый инстанс.
func (p *Poller) Observe(did, namespace string) model.ContainerView {
	p.stopForeignSession(did, namespace)

	files := p.store.ContainerFiles(namespace, did)

	if files == nil {
		v, _, _ := p.loadGroup.Do(namespace+"\x00"+did, func() (any, error) {
			// Double-check: набор мог загрузить предыдущий вызов группы
			if current := p.store.ContainerFiles(namespace, did); current != nil {
				return current, nil
			}
			loaded, _ := p.Refresh(p.ctx, did, namespace, false)
			return loaded, nil
		})
		files, _ = v.([]model.FileDetails)

		if availability.IsPolling(availability.DeriveStatus(files)) {
			// Набор только что получен — первый повторный запрос по таймеру
			p.startSession(did, namespace, false)
		}
	} else if availability.IsPolling(availability.DeriveStatus(files)) {
		p.startSession(did, namespace, true)
	}

	return p.View(did, namespace)
}

// Release — отключение представления контейнера: сессия останавливается при любом статусе.
func (p *Poller) Release(did string) {
	p.StopSession(did)
}

// View возвращает текущее состояние контейнера без запросов к каталогу.
func (p *Poller) View(did, namespace string) model.ContainerView {
	files := p.store.ContainerFiles(namespace, did)
	status := availability.DeriveStatus(files)

	view := model.ContainerView{
		DID:       did,
		Namespace: namespace,
		Status:    status,
		Files:     files,
		Actions: model.ContainerActions{
			MakeAvailable: availability.CanMakeAvailable(status),
		},
	}

	p.mu.Lock()
	if s, ok := p.sessions[did]; ok && s.namespace == namespace {
		view.Polling = true
		view.SessionID = s.id
	}
	p.mu.Unlock()

	return view
}

// Active сообщает, есть ли активная сессия опроса для did.
func (p *Poller) Active(did string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[did]
	return ok
}

// ActiveSessions возвращает количество активных сессий.
func (p *Poller) ActiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Close останавливает все сессии, отменяет запросы в полёте и ждёт завершения горутин.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	for did, s := range p.sessions {
		s.cancel()
		delete(p.sessions, did)
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.logger.Info("Poller остановлен")
}

// stopForeignSession останавливает сессию did, если она опрашивает другой namespace.
func (p *Poller) stopForeignSession(did, namespace string) {
	p.mu.Lock()
	s, ok := p.sessions[did]
	if !ok || s.namespace == namespace {
		p.mu.Unlock()
		return
	}
	delete(p.sessions, did)
	p.mu.Unlock()

	s.cancel()
	p.logger.Info("Сессия опроса остановлена: контейнер открыт в другом инстансе",
		slog.String("did", did),
		slog.String("namespace", s.namespace),
		slog.String("new_namespace", namespace),
		slog.String("session_id", s.id),
	)
}

// startSession регистрирует сессию и запускает её горутину.
// immediate — выполнить первый refresh сразу, иначе только по таймеру.
// Сессия того же DID в другом namespace заменяется.
func (p *Poller) startSession(did, namespace string, immediate bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if prev, ok := p.sessions[did]; ok {
		if prev.namespace == namespace {
			p.mu.Unlock()
			return
		}
		// finish прежней сессии не удалит новую: сравнение по указателю
		delete(p.sessions, did)
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(p.ctx)
	s := &session{
		id:        uuid.NewString(),
		did:       did,
		namespace: namespace,
		cancel:    cancel,
	}
	p.sessions[did] = s
	p.wg.Add(1)
	p.mu.Unlock()

	pollSessionsActive.Inc()
	p.logger.Info("Сессия опроса запущена",
		slog.String("did", did),
		slog.String("namespace", namespace),
		slog.String("session_id", s.id),
	)

	go p.run(ctx, s, immediate)
}

// run — основной цикл горутины сессии.
func (p *Poller) run(ctx context.Context, s *session, immediate bool) {
	defer p.wg.Done()
	defer p.finish(s)

	if immediate && !p.tick(s) {
		return
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			if !p.tick(s) {
				return
			}
		}
	}
}

// tick выполняет один цикл refresh → DeriveStatus.
// Возвращает true, если опрос нужно продолжать.
func (p *Poller) tick(s *session) bool {
	// Запрос идёт в корневом контексте: StopSession не отменяет его
	files, ok := p.Refresh(p.ctx, s.did, s.namespace, true)
	if !ok {
		return true
	}

	status := availability.DeriveStatus(files)
	if availability.IsPolling(status) {
		return true
	}

	p.logger.Info("Контейнер вышел из REPLICATING, опрос завершён",
		slog.String("did", s.did),
		slog.String("status", string(status)),
		slog.String("session_id", s.id),
	)
	return false
}

// finish удаляет сессию из реестра, если она не была заменена новой.
func (p *Poller) finish(s *session) {
	p.mu.Lock()
	if cur, ok := p.sessions[s.did]; ok && cur == s {
		delete(p.sessions, s.did)
	}
	p.mu.Unlock()

	s.cancel()
	pollSessionsActive.Dec()
}

// okOnly отбирает записи со статусом OK.
func okOnly(files []model.FileDetails) []model.FileDetails {
	result := make([]model.FileDetails, 0, len(files))
	for _, f := range files {
		if f.Status == model.FileOK {
			result = append(result, f)
		}
	}
	return result
}
