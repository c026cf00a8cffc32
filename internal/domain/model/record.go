// Пакет model — доменные модели CDR Monitor.
// Record — одна запись о звонке (CDR), полученная от сервиса CDR
// и аннотированная результатом независимой проверки целостности.
package model

import "time"

// RecordStatus — статус записи, присвоенный backend'ом.
type RecordStatus string

const (
	// StatusVerified — backend подтвердил целостность записи.
	StatusVerified RecordStatus = "verified"
	// StatusError — backend зафиксировал ошибку записи.
	StatusError RecordStatus = "error"
	// StatusMismatch — hash записи не совпал с внешним хранилищем.
	StatusMismatch RecordStatus = "mismatch"
)

// Record — запись о звонке (CDR).
// Status приходит от backend'а; Verified выставляется оркестратором
// по результату независимого verify-запроса и не зависит от Status.
// Идентичность записи в пределах одного цикла — её позиция (индекс)
// в полученной последовательности.
type Record struct {
	// Caller — номер вызывающего абонента.
	Caller string `json:"caller"`
	// Callee — номер вызываемого абонента.
	Callee string `json:"callee"`
	// Hash — контрольный отпечаток содержимого записи.
	Hash string `json:"hash"`
	// StorageRef — ссылка на внешнее content-addressed хранилище (опционально).
	StorageRef string `json:"storage_ref,omitempty"`
	// Status — статус записи от backend'а (verified, error, mismatch или пусто).
	Status RecordStatus `json:"status,omitempty"`
	// Verified — результат независимой проверки, выставляется оркестратором.
	Verified bool `json:"verified"`
}

// Stats — агрегированные счётчики по полному (нефильтрованному) набору записей.
// Счётчики независимы: одна запись может входить в несколько одновременно.
type Stats struct {
	// Total — общее количество записей.
	Total int `json:"total"`
	// Verified — записи со Status=verified ИЛИ Verified=true.
	Verified int `json:"verified"`
	// WithStorage — записи с непустым StorageRef.
	WithStorage int `json:"with_storage"`
	// Errors — записи со Status=error или Status=mismatch.
	Errors int `json:"errors"`
}

// Snapshot — read-only проекция состояния оркестратора для presentation-слоя.
type Snapshot struct {
	// Records — полный набор записей последнего успешного цикла.
	Records []Record `json:"records"`
	// Filtered — подмножество Records по текущему поисковому запросу.
	Filtered []Record `json:"filtered"`
	// SearchTerm — текущий поисковый запрос (может быть пустым).
	SearchTerm string `json:"search_term"`
	// Stats — агрегированные счётчики по Records.
	Stats Stats `json:"stats"`
	// Loading — идёт ли сейчас цикл обновления.
	Loading bool `json:"loading"`
	// Alert — текущее транзиентное сообщение об ошибке (пусто, если нет).
	Alert string `json:"alert,omitempty"`
	// LastRefreshAt — время завершения последнего цикла обновления
	// (успешного или нет). Нулевое, если цикл ещё не завершался.
	LastRefreshAt time.Time `json:"last_refresh_at"`
	// LastCycleID — идентификатор последнего завершённого цикла.
	LastCycleID string `json:"last_cycle_id,omitempty"`
}
