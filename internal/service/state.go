// state.go — разделяемое состояние оркестратора.
//
// StateStore — единственный владелец набора записей, поискового запроса
// и производных представлений. Производные (отфильтрованный набор и
// счётчики) пересчитываются при каждой мутации источника:
// ReplaceRecords пересчитывает и фильтр, и счётчики,
// SetSearchTerm — только фильтр (счётчики считаются по полному набору).
// Читатели (handlers, SSE) получают согласованный Snapshot в любой момент.
package service

import (
	"sync"
	"time"

	"github.com/bigkaa/cdrmon/internal/domain/model"
)

// StateStore — потокобезопасный агрегат состояния оркестратора.
type StateStore struct {
	alert *AlertService

	mu            sync.RWMutex
	records       []model.Record
	searchTerm    string
	filtered      []model.Record
	stats         model.Stats
	loading       bool
	lastRefreshAt time.Time
	lastCycleID   string
}

// NewStateStore создаёт пустое состояние с подключённым контроллером ошибок.
func NewStateStore(alert *AlertService) *StateStore {
	return &StateStore{alert: alert}
}

// ReplaceRecords целиком заменяет набор записей результатом нового цикла
// и пересчитывает отфильтрованное представление и счётчики.
func (s *StateStore) ReplaceRecords(records []model.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	s.filtered = Filter(s.records, s.searchTerm)
	s.stats = ComputeStats(s.records)
}

// SetSearchTerm меняет поисковый запрос и пересчитывает отфильтрованное
// представление. Счётчики не зависят от запроса и не пересчитываются.
func (s *StateStore) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchTerm = term
	s.filtered = Filter(s.records, s.searchTerm)
}

// SetLoading выставляет флаг выполняющегося цикла обновления.
func (s *StateStore) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// MarkRefreshCompleted фиксирует время и идентификатор завершённого цикла.
// Вызывается при любом исходе цикла — успешном или нет.
func (s *StateStore) MarkRefreshCompleted(cycleID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycleID = cycleID
	s.lastRefreshAt = at
}

// Snapshot возвращает согласованную read-only проекцию состояния.
// Срезы копируются, чтобы читатели не наблюдали последующие мутации.
func (s *StateStore) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.Snapshot{
		Records:       make([]model.Record, len(s.records)),
		Filtered:      make([]model.Record, len(s.filtered)),
		SearchTerm:    s.searchTerm,
		Stats:         s.stats,
		Loading:       s.loading,
		LastRefreshAt: s.lastRefreshAt,
		LastCycleID:   s.lastCycleID,
	}
	copy(snap.Records, s.records)
	copy(snap.Filtered, s.filtered)

	if s.alert != nil {
		snap.Alert = s.alert.Message()
	}
	return snap
}

// Stats возвращает текущие агрегированные счётчики.
func (s *StateStore) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Filtered возвращает копию текущего отфильтрованного набора и запрос.
func (s *StateStore) Filtered() ([]model.Record, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(s.filtered))
	copy(out, s.filtered)
	return out, s.searchTerm
}
