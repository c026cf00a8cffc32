// Точка входа CDR Monitor — клиент мониторинга записей CDR.
// Загружает конфигурацию, создаёт клиент сервиса CDR, сервисный слой
// (цикл обновления, проверка записей, состояние, алерты), запускает
// фоновые задачи (периодическое обновление, topologymetrics),
// HTTP-сервер с опциональным JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/cdrmon/internal/api/handlers"
	"github.com/bigkaa/cdrmon/internal/api/middleware"
	"github.com/bigkaa/cdrmon/internal/cdrclient"
	"github.com/bigkaa/cdrmon/internal/config"
	"github.com/bigkaa/cdrmon/internal/server"
	"github.com/bigkaa/cdrmon/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("CDR Monitor запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cdr_url", cfg.CDRURL),
		slog.String("refresh_interval", cfg.RefreshInterval.String()),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("CM_DEPHEALTH_GROUP") == "" {
		logger.Warn("CM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. HTTP-клиент сервиса CDR
	var tokenProvider cdrclient.TokenProvider
	if cfg.CDRToken != "" {
		tokenProvider = cdrclient.StaticToken(cfg.CDRToken)
	}

	client, err := cdrclient.New(cfg.CDRURL, cfg.CDRCACertPath, tokenProvider, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента сервиса CDR", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Сервисный слой
	alertSvc := service.NewAlertService(cfg.AlertTTL, logger)
	stateStore := service.NewStateStore(alertSvc)
	verifierSvc := service.NewVerifierService(client, logger)
	syncSvc := service.NewSyncService(
		client, verifierSvc, stateStore, alertSvc,
		cfg.RefreshInterval,
		logger,
	)

	// 5. JWT middleware (опционально — включается, если задан CM_JWT_JWKS_URL)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err = middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.CDRCACertPath,
			cfg.JWTIssuer,
			cfg.RoleAdminGroups,
			cfg.RoleReadonlyGroups,
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("CM_JWT_JWKS_URL не задан, API работает без аутентификации")
	}

	// 6. Запуск фонового цикла обновления (первый цикл — сразу при старте)
	ctx := context.Background()
	syncSvc.Start(ctx)

	// 6.1 topologymetrics — мониторинг зависимости (сервис CDR)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"cdrmon",
		cfg.DephealthGroup,
		cfg.CDRURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Handlers
	cdrChecker := cdrclient.NewReadinessChecker(client, 5*time.Second)
	h := server.Handlers{
		State:  handlers.NewStateHandler(stateStore, alertSvc, syncSvc, logger),
		Health: handlers.NewHealthHandler(cdrChecker),
		Events: handlers.NewEventsHandler(stateStore, dephealthSvc, cfg.SSEInterval, logger),
	}

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	syncSvc.Stop()
	alertSvc.Stop()

	logger.Info("CDR Monitor остановлен")
}
