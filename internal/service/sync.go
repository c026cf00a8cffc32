// sync.go — цикл синхронизации набора записей с сервисом CDR.
//
// SyncService запускает фоновую горутину: первый цикл выполняется сразу,
// далее — по ticker с интервалом CM_REFRESH_INTERVAL. Refresh доступен
// и по требованию (ручной триггер из API) и идёт тем же кодом, что и
// таймерный: специальной защиты от параллельных циклов нет, оба пишут
// в состояние, побеждает последняя запись.
//
// Шаги цикла:
//  1. loading=true, снять текущее сообщение об ошибке
//  2. ListRecords; при ошибке — выставить generic-сообщение, прежний
//     набор записей НЕ трогать (устаревшие данные лучше пустого экрана)
//  3. при успехе — прогнать набор через VerifierService и целиком
//     заменить состояние аннотированным результатом
//  4. loading=false и отметка о завершении цикла — всегда, через defer
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Сообщение об ошибке получения данных — фиксированное, без деталей
// транспорта (детали уходят в лог).
const fetchErrorMessage = "Не удалось получить данные; проверьте доступность backend"

// Prometheus-метрики цикла синхронизации.
var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_refresh_total",
		Help: "Количество циклов обновления по результатам",
	}, []string{"result"}) // result: ok, fetch_error

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_refresh_duration_seconds",
		Help:    "Длительность полного цикла обновления",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	recordsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cm_records_current",
		Help: "Количество записей в текущем наборе",
	})
)

// SyncService — фоновый цикл обновления набора записей.
type SyncService struct {
	client   CDRClient
	verifier *VerifierService
	state    *StateStore
	alert    *AlertService
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncService создаёт сервис синхронизации.
func NewSyncService(
	client CDRClient,
	verifier *VerifierService,
	state *StateStore,
	alert *AlertService,
	interval time.Duration,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		client:   client,
		verifier: verifier,
		state:    state,
		alert:    alert,
		interval: interval,
		logger:   logger.With(slog.String("component", "sync")),
	}
}

// Start запускает фоновую горутину с периодическим обновлением.
// Первый цикл выполняется сразу, без ожидания первого тика.
// Вызывается один раз при старте приложения.
func (s *SyncService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Периодическое обновление набора записей запущено",
			slog.String("interval", s.interval.String()),
		)

		s.Refresh(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Периодическое обновление набора записей остановлено")
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт её завершения.
// Уже выполняющийся цикл не отменяется — его результат просто
// допишется в состояние.
func (s *SyncService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// Refresh выполняет один полный цикл: fetch → verify → публикация.
// Безопасен для параллельного вызова (таймер + ручной триггер):
// каждый вызов независим, побеждает последняя запись в состояние.
func (s *SyncService) Refresh(ctx context.Context) {
	cycleID := uuid.NewString()
	start := time.Now()

	// Шаг 1: отметить начало цикла, снять прежнее сообщение об ошибке
	s.state.SetLoading(true)
	s.alert.Clear()

	// Шаг 4 — всегда, независимо от исхода
	defer func() {
		s.state.SetLoading(false)
		s.state.MarkRefreshCompleted(cycleID, time.Now().UTC())
		refreshDuration.Observe(time.Since(start).Seconds())
	}()

	// Шаг 2: получение набора записей
	listResp, err := s.client.ListRecords(ctx)
	if err != nil {
		// Прежний набор записей сохраняется, пользователь видит
		// устаревшие данные и транзиентное сообщение об ошибке.
		s.alert.Set(fetchErrorMessage)
		refreshTotal.WithLabelValues("fetch_error").Inc()
		s.logger.Error("Ошибка получения набора записей",
			slog.String("cycle_id", cycleID),
			slog.String("error", err.Error()),
		)
		return
	}

	// Шаг 3: независимая проверка каждой записи и публикация снапшота
	annotated := s.verifier.Verify(ctx, listResp.Records)
	s.state.ReplaceRecords(annotated)

	recordsCurrent.Set(float64(len(annotated)))
	refreshTotal.WithLabelValues("ok").Inc()

	s.logger.Info("Цикл обновления завершён",
		slog.String("cycle_id", cycleID),
		slog.Int("records", len(annotated)),
		slog.Duration("duration", time.Since(start)),
	)
}
