// main.go — точка входа Availability Module.
// Отслеживает статус доступности контейнеров каталога и опрашивает
// Catalog Query Service, пока контейнер реплицируется.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/availability-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/availability-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/availability-module/internal/catalogclient"
	"github.com/bigkaa/goartstore/availability-module/internal/config"
	"github.com/bigkaa/goartstore/availability-module/internal/instance"
	"github.com/bigkaa/goartstore/availability-module/internal/server"
	"github.com/bigkaa/goartstore/availability-module/internal/service"
	"github.com/bigkaa/goartstore/availability-module/internal/store"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Availability Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("catalog_url", cfg.CatalogURL),
		slog.Duration("poll_interval", cfg.PollInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// 3. Клиент Catalog Query Service
	catalog, err := catalogclient.New(cfg.CatalogURL, cfg.CatalogCACertPath, cfg.CatalogTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента каталога", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Общее состояние и реестр инстансов
	st, err := store.New(cfg.FileIndexSize)
	if err != nil {
		logger.Error("Ошибка создания хранилища состояния", slog.String("error", err.Error()))
		os.Exit(1)
	}
	registry := instance.New(catalog, st, logger)

	// 5. Poller
	poller := service.NewPoller(catalog, st, registry, cfg.PollInterval, clockwork.NewRealClock(), logger)

	// 6. topologymetrics — мониторинг каталога
	var catalogChecker handlers.ReadinessChecker
	var dephealthSvc *service.DephealthService
	if cfg.DephealthEnabled {
		dephealthSvc, err = service.NewDephealthService(
			"availability-module",
			cfg.DephealthGroup,
			cfg.CatalogURL,
			cfg.CatalogHealthPath,
			cfg.DephealthCheckInterval,
			cfg.DephealthIsEntry,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			catalogChecker = dephealthSvc
		}
	}

	// 7. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewHealthHandler(catalogChecker, registry),
		handlers.NewContainerHandler(poller, registry, logger),
		handlers.NewFileHandler(st),
		handlers.NewInstanceHandler(registry, logger),
		logger,
	)

	// 8. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)

	// Инстансы загружаются в фоне: сервер отвечает на probes до готовности каталога
	g.Go(func() error {
		err := registry.LoadWithRetry(gctx, cfg.DefaultInstance, cfg.PollInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return srv.Run(gctx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		exitCode = 1
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...",
		slog.Int("active_sessions", poller.ActiveSessions()),
		slog.Int("loaded_containers", st.ContainerCount()),
	)

	poller.Close()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	st.Reset()
	stop()

	logger.Info("Availability Module остановлен")
	os.Exit(exitCode)
}
