// Пакет store — общее in-memory состояние Availability Module.
//
// Store — единственный долгоживущий владелец:
//   - активного инстанса каталога;
//   - наборов статусов файлов контейнеров (ключ — namespace и DID контейнера);
//   - индекса деталей отдельных файлов (ключ — DID файла), LRU-кэш hashicorp/golang-lru/v2.
//
// Наборы заменяются целиком, поэлементно не изменяются. Потокобезопасен.
package store

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/availability-module/internal/domain/model"
)

// Prometheus-метрики индекса файлов.
var (
	fileIndexHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "av_file_index_hits_total",
		Help: "Общее количество попаданий в индекс деталей файлов.",
	})
	fileIndexMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "av_file_index_misses_total",
		Help: "Общее количество промахов индекса деталей файлов.",
	})
)

// containerKey — ключ набора: один DID в разных инстансах — разные наборы.
type containerKey struct {
	namespace string
	did       string
}

// Store — общее состояние: активный инстанс, наборы файлов контейнеров, индекс файлов.
type Store struct {
	mu             sync.RWMutex
	activeInstance *model.Instance
	containers     map[containerKey][]model.FileDetails

	fileDetails *lru.Cache[string, model.FileDetails]
}

// New создаёт пустое хранилище.
// fileIndexSize — максимальное количество записей в индексе деталей файлов.
func New(fileIndexSize int) (*Store, error) {
	cache, err := lru.New[string, model.FileDetails](fileIndexSize)
	if err != nil {
		return nil, fmt.Errorf("создание индекса файлов: %w", err)
	}

	return &Store{
		containers:  make(map[containerKey][]model.FileDetails),
		fileDetails: cache,
	}, nil
}

// --- Активный инстанс ---

// ActiveInstance возвращает активный инстанс (nil — не выбран).
func (s *Store) ActiveInstance() *model.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeInstance == nil {
		return nil
	}
	inst := *s.activeInstance
	return &inst
}

// SetActiveInstance устанавливает активный инстанс (nil — сброс).
func (s *Store) SetActiveInstance(inst *model.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst == nil {
		s.activeInstance = nil
		return
	}
	copied := *inst
	s.activeInstance = &copied
}

// --- Наборы файлов контейнеров ---

// ContainerFiles возвращает копию набора файлов контейнера в namespace.
// nil — набор ещё не загружен.
func (s *Store) ContainerFiles(namespace, did string) []model.FileDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, ok := s.containers[containerKey{namespace: namespace, did: did}]
	if !ok {
		return nil
	}
	return cloneFiles(files)
}

// SetContainerFiles заменяет набор файлов контейнера целиком.
// nil интерпретируется как пустой набор.
func (s *Store) SetContainerFiles(namespace, did string, files []model.FileDetails) {
	copied := cloneFiles(files)
	if copied == nil {
		copied = []model.FileDetails{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[containerKey{namespace: namespace, did: did}] = copied
}

// ContainerCount возвращает количество загруженных наборов (по всем namespace).
func (s *Store) ContainerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.containers)
}

// --- Индекс деталей файлов ---

// MergeFileDetails добавляет или обновляет записи индекса файлов.
// Записи, отсутствующие в files, не затрагиваются.
func (s *Store) MergeFileDetails(files []model.FileDetails) {
	for _, f := range files {
		s.fileDetails.Add(f.DID, f)
	}
}

// FileDetails возвращает детали файла по DID.
// Обновляет Prometheus-метрики hit/miss.
func (s *Store) FileDetails(did string) (model.FileDetails, bool) {
	f, ok := s.fileDetails.Get(did)
	if ok {
		fileIndexHitsTotal.Inc()
		return f, true
	}
	fileIndexMissesTotal.Inc()
	return model.FileDetails{}, false
}

// Reset очищает всё состояние. Вызывается при завершении процесса после остановки Poller.
func (s *Store) Reset() {
	s.mu.Lock()
	s.activeInstance = nil
	s.containers = make(map[containerKey][]model.FileDetails)
	s.mu.Unlock()

	s.fileDetails.Purge()
}

// cloneFiles копирует срез, сохраняя различие nil / пустой.
func cloneFiles(files []model.FileDetails) []model.FileDetails {
	if files == nil {
		return nil
	}
	result := make([]model.FileDetails, len(files))
	copy(result, files)
	return result
}
