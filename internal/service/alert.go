// alert.go — контроллер транзиентных сообщений об ошибках.
//
// AlertService хранит не более одного активного сообщения. Сообщение
// выставляется при ошибке получения данных и автоматически гасится
// через ttl (CM_ALERT_TTL). Новое сообщение отменяет таймер предыдущего
// и запускает свой — таймеры не накапливаются. Досрочное снятие:
// начало нового цикла обновления или явный dismiss.
package service

import (
	"log/slog"
	"sync"
	"time"
)

// AlertService — контроллер одного транзиентного сообщения об ошибке.
type AlertService struct {
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	message string
	seq     uint64
	timer   *time.Timer
}

// NewAlertService создаёт контроллер с указанным временем видимости сообщения.
func NewAlertService(ttl time.Duration, logger *slog.Logger) *AlertService {
	return &AlertService{
		ttl:    ttl,
		logger: logger.With(slog.String("component", "alert")),
	}
}

// Set выставляет сообщение и планирует его автоматическое снятие через ttl.
// Таймер предыдущего сообщения отменяется. Номер последовательности
// защищает от гонки: сработавший таймер устаревшего сообщения не снимет новое.
func (a *AlertService) Set(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}

	a.message = message
	a.seq++
	seq := a.seq

	a.timer = time.AfterFunc(a.ttl, func() {
		a.clearIfCurrent(seq)
	})

	a.logger.Debug("Сообщение об ошибке выставлено",
		slog.String("message", message),
		slog.String("ttl", a.ttl.String()),
	)
}

// Clear снимает текущее сообщение и отменяет его таймер (если есть).
func (a *AlertService) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.message = ""
	a.seq++
}

// Message возвращает текущее сообщение (пустая строка — сообщения нет).
func (a *AlertService) Message() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.message
}

// Stop отменяет отложенный таймер при остановке приложения.
func (a *AlertService) Stop() {
	a.Clear()
}

// clearIfCurrent снимает сообщение, только если оно не было заменено
// более новым после планирования таймера.
func (a *AlertService) clearIfCurrent(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.seq != seq {
		return
	}
	a.message = ""
	a.timer = nil
	a.logger.Debug("Сообщение об ошибке снято по таймеру")
}
