// derive.go — чистые функции вывода производных представлений:
// Filter — поисковая фильтрация набора записей,
// ComputeStats — агрегированные счётчики по полному набору.
// Обе функции не мутируют вход и пересчитываются при каждом изменении
// набора записей или поискового запроса (derive вызывает StateStore).
package service

import (
	"strings"

	"github.com/bigkaa/cdrmon/internal/domain/model"
)

// Filter возвращает подмножество записей, у которых поисковый запрос term
// содержится (без учёта регистра) хотя бы в одном из полей:
// Caller, Callee, Hash, StorageRef (последний проверяется только если задан).
// Пустой или состоящий из пробелов term возвращает records без изменений.
// Непустой term матчится как есть: пробелы внутри и по краям значимы.
func Filter(records []model.Record, term string) []model.Record {
	if strings.TrimSpace(term) == "" {
		return records
	}

	needle := strings.ToLower(term)
	filtered := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if recordMatches(rec, needle) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// recordMatches проверяет, содержит ли хотя бы одно поле записи needle
// (needle уже в нижнем регистре).
func recordMatches(rec model.Record, needle string) bool {
	if strings.Contains(strings.ToLower(rec.Caller), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Callee), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Hash), needle) {
		return true
	}
	if rec.StorageRef != "" && strings.Contains(strings.ToLower(rec.StorageRef), needle) {
		return true
	}
	return false
}

// ComputeStats считает агрегированные счётчики по полному набору записей.
// Счётчики независимы: запись может входить в несколько одновременно.
// Verified засчитывается, если Status=verified ИЛИ Verified=true —
// достаточно любого из двух сигналов.
func ComputeStats(records []model.Record) model.Stats {
	stats := model.Stats{Total: len(records)}
	for _, rec := range records {
		if rec.Status == model.StatusVerified || rec.Verified {
			stats.Verified++
		}
		if rec.StorageRef != "" {
			stats.WithStorage++
		}
		if rec.Status == model.StatusError || rec.Status == model.StatusMismatch {
			stats.Errors++
		}
	}
	return stats
}
