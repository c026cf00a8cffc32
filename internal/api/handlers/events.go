// events.go — SSE (Server-Sent Events) endpoint для real-time обновлений
// presentation-слоя: агрегированные счётчики, статус цикла и статус
// зависимостей. Каждый SSE-клиент обслуживается отдельной горутиной.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/cdrmon/internal/domain/model"
	"github.com/bigkaa/cdrmon/internal/service"
)

// EventsHandler — обработчик SSE endpoint для real-time обновлений.
type EventsHandler struct {
	state        *service.StateStore
	dephealthSvc *service.DephealthService // может быть nil
	sseInterval  time.Duration
	logger       *slog.Logger
}

// NewEventsHandler создаёт новый EventsHandler.
// sseInterval — интервал отправки SSE-обновлений (CM_SSE_INTERVAL).
func NewEventsHandler(
	state *service.StateStore,
	dephealthSvc *service.DephealthService,
	sseInterval time.Duration,
	logger *slog.Logger,
) *EventsHandler {
	return &EventsHandler{
		state:        state,
		dephealthSvc: dephealthSvc,
		sseInterval:  sseInterval,
		logger:       logger.With(slog.String("component", "api.events")),
	}
}

// stateEvent — SSE-событие состояния оркестратора.
type stateEvent struct {
	Stats         model.Stats `json:"stats"`
	Loading       bool        `json:"loading"`
	Alert         string      `json:"alert,omitempty"`
	LastRefreshAt time.Time   `json:"last_refresh_at"`
}

// depStatusEvent — SSE-событие статуса зависимостей.
type depStatusEvent struct {
	Dependencies []depStatusItem `json:"dependencies"`
}

// depStatusItem — статус одной зависимости.
type depStatusItem struct {
	Name   string `json:"name"`
	Status string `json:"status"` // online, offline, unavailable
}

// HandleEvents обрабатывает GET /api/v1/events — SSE endpoint.
// Периодически отправляет клиенту состояние оркестратора и статус
// зависимостей. Формат: event: state\ndata: {json}\n\n.
// Graceful disconnect при закрытии клиентом соединения (context cancel).
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	// Настраиваем заголовки SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// Используем http.ResponseController для корректной работы Flush()
	// через обёрнутый ResponseWriter (logging middleware и др.).
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	h.logger.Debug("SSE клиент подключён", slog.String("remote_addr", r.RemoteAddr))

	// Отправляем начальные данные сразу при подключении
	h.sendState(w, rc)
	h.sendDepStatus(w, rc)

	// Периодическая отправка
	ticker := time.NewTicker(h.sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Клиент отключился
			h.logger.Debug("SSE клиент отключён", slog.String("remote_addr", r.RemoteAddr))
			return
		case <-ticker.C:
			h.sendState(w, rc)
			h.sendDepStatus(w, rc)
		}
	}
}

// sendState отправляет SSE-событие состояния оркестратора.
func (h *EventsHandler) sendState(w http.ResponseWriter, rc *http.ResponseController) {
	snap := h.state.Snapshot()
	event := stateEvent{
		Stats:         snap.Stats,
		Loading:       snap.Loading,
		Alert:         snap.Alert,
		LastRefreshAt: snap.LastRefreshAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Ошибка сериализации state-события", slog.String("error", err.Error()))
		return
	}

	// Формат SSE: event: state\ndata: {json}\n\n
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
	_ = rc.Flush()
}

// sendDepStatus отправляет SSE-событие статуса зависимостей.
func (h *EventsHandler) sendDepStatus(w http.ResponseWriter, rc *http.ResponseController) {
	event := depStatusEvent{}

	if h.dephealthSvc == nil {
		event.Dependencies = []depStatusItem{
			{Name: "CDR Service", Status: "unavailable"},
		}
	} else {
		health := h.dephealthSvc.Health()
		event.Dependencies = []depStatusItem{
			{Name: "CDR Service", Status: depHealthStatus(findHealthByPrefix(health, "cdr-service"))},
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Ошибка сериализации dep-status", slog.String("error", err.Error()))
		return
	}

	fmt.Fprintf(w, "event: dep-status\ndata: %s\n\n", data)
	_ = rc.Flush()
}

// findHealthByPrefix ищет статус зависимости по префиксу имени.
// Health() из topologymetrics SDK возвращает ключи формата "dependency:host:port",
// поэтому ищем ключ, начинающийся с имени зависимости + ":".
// Если найдено несколько — возвращает true только если все healthy.
func findHealthByPrefix(health map[string]bool, prefix string) bool {
	found := false
	for key, ok := range health {
		if strings.HasPrefix(key, prefix+":") || key == prefix {
			if !ok {
				return false
			}
			found = true
		}
	}
	return found
}

// depHealthStatus переводит булев статус dephealth в строку для события.
func depHealthStatus(ok bool) string {
	if ok {
		return "online"
	}
	return "offline"
}
