// verify.go — независимая проверка целостности набора записей.
//
// VerifierService выполняет fan-out: по одному verify-запросу на запись,
// все запросы стартуют одновременно и не блокируют друг друга. Ошибка
// проверки одной записи изолируется: запись получает Verified=false,
// ошибка логируется как Warn с индексом записи и не прерывает остальные
// проверки и не поднимается наверх. Результат возвращается целиком
// после завершения всех проверок; порядок и длина совпадают со входом.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cdrmon/internal/cdrclient"
	"github.com/bigkaa/cdrmon/internal/domain/model"
)

// Prometheus-метрики проверки записей.
var (
	verifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_verify_total",
		Help: "Количество verify-запросов по результатам",
	}, []string{"outcome"}) // outcome: verified, rejected, failed

	verifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_verify_batch_duration_seconds",
		Help:    "Длительность полной проверки набора записей",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms … ~25s
	})
)

// CDRClient — операции сервиса CDR, нужные оркестратору.
// Реализуется cdrclient.Client; в тестах подменяется фейком.
type CDRClient interface {
	ListRecords(ctx context.Context) (*cdrclient.RecordListResponse, error)
	VerifyRecord(ctx context.Context, index int, storageRef string) (bool, error)
}

// VerifierService — fan-out проверка целостности записей.
type VerifierService struct {
	client CDRClient
	logger *slog.Logger
}

// NewVerifierService создаёт сервис проверки записей.
func NewVerifierService(client CDRClient, logger *slog.Logger) *VerifierService {
	return &VerifierService{
		client: client,
		logger: logger.With(slog.String("component", "verifier")),
	}
}

// Verify аннотирует каждую запись результатом независимой проверки.
// Все проверки выполняются одновременно; возврат — только после
// завершения всех. Выход соответствует входу по индексам один к одному.
func (v *VerifierService) Verify(ctx context.Context, raw []cdrclient.CDRRecord) []model.Record {
	start := time.Now()

	annotated := make([]model.Record, len(raw))

	var wg sync.WaitGroup
	for i, rec := range raw {
		annotated[i] = model.Record{
			Caller:     rec.Caller,
			Callee:     rec.Callee,
			Hash:       rec.Hash,
			StorageRef: rec.StorageRef,
			Status:     model.RecordStatus(rec.Status),
		}

		wg.Add(1)
		go func(i int, storageRef string) {
			defer wg.Done()

			verified, err := v.client.VerifyRecord(ctx, i, storageRef)
			if err != nil {
				// Изоляция ошибки: запись считается непроверенной,
				// остальные проверки продолжаются.
				annotated[i].Verified = false
				verifyTotal.WithLabelValues("failed").Inc()
				v.logger.Warn("Ошибка проверки записи",
					slog.Int("index", i),
					slog.String("error", err.Error()),
				)
				return
			}

			annotated[i].Verified = verified
			if verified {
				verifyTotal.WithLabelValues("verified").Inc()
			} else {
				verifyTotal.WithLabelValues("rejected").Inc()
			}
		}(i, rec.StorageRef)
	}
	wg.Wait()

	verifyDuration.Observe(time.Since(start).Seconds())
	return annotated
}
