// Пакет handlers — HTTP-обработчики API CDR Monitor.
// Файл state.go — read-only проекции состояния оркестратора и
// presentation-триггеры: смена поискового запроса, ручной запуск цикла
// обновления, снятие сообщения об ошибке.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/cdrmon/internal/api/errors"
	"github.com/bigkaa/cdrmon/internal/domain/model"
	"github.com/bigkaa/cdrmon/internal/service"
)

// StateHandler — обработчик проекций состояния и триггеров.
type StateHandler struct {
	state  *service.StateStore
	alert  *service.AlertService
	sync   *service.SyncService
	logger *slog.Logger
}

// NewStateHandler создаёт обработчик состояния.
func NewStateHandler(
	state *service.StateStore,
	alert *service.AlertService,
	sync *service.SyncService,
	logger *slog.Logger,
) *StateHandler {
	return &StateHandler{
		state:  state,
		alert:  alert,
		sync:   sync,
		logger: logger.With(slog.String("component", "api.state")),
	}
}

// recordsResponse — ответ GET /api/v1/records и PUT /api/v1/search.
type recordsResponse struct {
	Records    []model.Record `json:"records"`
	Total      int            `json:"total"`
	SearchTerm string         `json:"search_term"`
}

// searchRequest — тело запроса PUT /api/v1/search.
type searchRequest struct {
	Term string `json:"term"`
}

// GetState обрабатывает GET /api/v1/state — полный снапшот состояния.
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

// GetRecords обрабатывает GET /api/v1/records — отфильтрованное представление.
func (h *StateHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	filtered, term := h.state.Filtered()
	writeJSON(w, http.StatusOK, recordsResponse{
		Records:    filtered,
		Total:      len(filtered),
		SearchTerm: term,
	})
}

// GetStats обрабатывает GET /api/v1/stats — агрегированные счётчики.
func (h *StateHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Stats())
}

// SetSearch обрабатывает PUT /api/v1/search — смена поискового запроса.
// Возвращает пересчитанное отфильтрованное представление.
func (h *StateHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается {\"term\": \"...\"}")
		return
	}

	h.state.SetSearchTerm(req.Term)

	filtered, term := h.state.Filtered()
	writeJSON(w, http.StatusOK, recordsResponse{
		Records:    filtered,
		Total:      len(filtered),
		SearchTerm: term,
	})
}

// TriggerRefresh обрабатывает POST /api/v1/refresh — ручной запуск цикла.
// Цикл выполняется асинхронно тем же кодом, что и таймерный; защиты от
// параллельного выполнения нет, побеждает последняя запись в состояние.
func (h *StateHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	// Не привязываемся к контексту запроса: цикл должен дожить
	// до конца независимо от того, дождался ли клиент ответа.
	go h.sync.Refresh(context.Background())

	h.logger.Info("Ручной запуск цикла обновления", slog.String("remote_addr", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// DismissAlert обрабатывает DELETE /api/v1/alert — явное снятие сообщения.
func (h *StateHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	h.alert.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON сериализует ответ и выставляет Content-Type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
