// Пакет instance — реестр инстансов (namespace) каталога.
// Загружает список инстансов из Catalog Query Service, определяет активный
// и сохраняет выбор пользователя в Store и на стороне сервиса.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/availability-module/internal/catalogclient"
	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
	"github.com/bigkaa/goartstore/availability-module/internal/store"
)

// Ошибки реестра.
var (
	// ErrUnknownInstance — инстанс с таким именем отсутствует в списке.
	ErrUnknownInstance = errors.New("неизвестный инстанс")
	// ErrNotLoaded — список инстансов ещё не загружен.
	ErrNotLoaded = errors.New("список инстансов не загружен")
)

// Catalog — операции Catalog Query Service, нужные реестру.
type Catalog interface {
	ListInstances(ctx context.Context) (*catalogclient.InstanceList, error)
	SetActiveInstance(ctx context.Context, name string) error
}

// Registry — реестр инстансов каталога.
type Registry struct {
	catalog Catalog
	store   *store.Store
	logger  *slog.Logger

	mu        sync.RWMutex
	instances []model.Instance
	loaded    bool
}

// New создаёт реестр инстансов.
func New(catalog Catalog, st *store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		catalog: catalog,
		store:   st,
		logger:  logger.With(slog.String("component", "instance_registry")),
	}
}

// Load загружает список инстансов.
// Если сервис сообщает активный инстанс и он есть в списке — он становится активным.
// preferred — инстанс по умолчанию из конфигурации, используется, если сервис активный не сообщил.
func (r *Registry) Load(ctx context.Context, preferred string) error {
	list, err := r.catalog.ListInstances(ctx)
	if err != nil {
		return fmt.Errorf("загрузка инстансов: %w", err)
	}

	r.mu.Lock()
	r.instances = append([]model.Instance(nil), list.Instances...)
	r.loaded = true
	r.mu.Unlock()

	active := list.ActiveInstance
	if active == "" {
		active = preferred
	}

	if inst, ok := r.find(active); ok {
		r.store.SetActiveInstance(&inst)
		r.logger.Info("Активный инстанс",
			slog.String("instance", inst.Name),
		)
	}

	r.logger.Info("Список инстансов загружен",
		slog.Int("count", len(list.Instances)),
	)
	return nil
}

// LoadWithRetry повторяет Load с интервалом retry, пока загрузка не удастся
// или ctx не будет отменён. Возвращает ошибку контекста при отмене.
func (r *Registry) LoadWithRetry(ctx context.Context, preferred string, retry time.Duration) error {
	err := r.Load(ctx, preferred)
	if err == nil {
		return nil
	}
	r.logger.Warn("Не удалось загрузить инстансы, повтор по таймеру",
		slog.Duration("retry", retry),
		slog.String("error", err.Error()),
	)

	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Load(ctx, preferred); err != nil {
				r.logger.Warn("Повторная загрузка инстансов не удалась",
					slog.String("error", err.Error()),
				)
				continue
			}
			return nil
		}
	}
}

// CheckReady реализует handlers.ReadinessChecker: реестр готов после загрузки списка.
func (r *Registry) CheckReady() (status, message string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return "fail", ErrNotLoaded.Error()
	}
	if r.store.ActiveInstance() == nil {
		return "degraded", "активный инстанс не выбран"
	}
	return "ok", ""
}

// Instances возвращает копию загруженного списка инстансов.
func (r *Registry) Instances() ([]model.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, ErrNotLoaded
	}
	return append([]model.Instance(nil), r.instances...), nil
}

// Active возвращает активный инстанс (nil — не выбран).
func (r *Registry) Active() *model.Instance {
	return r.store.ActiveInstance()
}

// ActiveNamespace возвращает имя активного инстанса.
func (r *Registry) ActiveNamespace() (string, bool) {
	inst := r.store.ActiveInstance()
	if inst == nil {
		return "", false
	}
	return inst.Name, true
}

// SetActive делает инстанс активным: сразу в Store, затем PUT instances.
// Ошибка сохранения на стороне сервиса логируется и не возвращается.
// До загрузки списка возвращает ErrNotLoaded.
func (r *Registry) SetActive(ctx context.Context, name string) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if !loaded {
		return ErrNotLoaded
	}

	inst, ok := r.find(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownInstance, name)
	}

	r.store.SetActiveInstance(&inst)

	if err := r.catalog.SetActiveInstance(ctx, name); err != nil {
		r.logger.Warn("Не удалось сохранить активный инстанс в каталоге",
			slog.String("instance", name),
			slog.String("error", err.Error()),
		)
		return nil
	}

	r.logger.Info("Активный инстанс изменён",
		slog.String("instance", name),
	)
	return nil
}

// find ищет инстанс по имени в загруженном списке.
func (r *Registry) find(name string) (model.Instance, bool) {
	if name == "" {
		return model.Instance{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inst := range r.instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return model.Instance{}, false
}
