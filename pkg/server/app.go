package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinScore/internal/scheduler"
	"FinScore/internal/usecase"
	pkgcache "FinScore/pkg/cache"
	pkgch "FinScore/pkg/clickhouse"
	"FinScore/pkg/config"
	xhttp "FinScore/pkg/http"
	pkgkafka "FinScore/pkg/kafka"
	applogger "FinScore/pkg/logger"
)

// Deps are the components App starts and stops. Kafka, ClickHouse and Redis
// are nil when disabled.
type Deps struct {
	Config      *config.Config
	Logger      *applogger.Logger
	HTTP        *xhttp.Server
	Scheduler   *scheduler.Scheduler
	Scans       *usecase.ScanRegistry
	Consumer    *pkgkafka.Consumer
	ScanHandler pkgkafka.MessageHandler
	Producer    *pkgkafka.Producer
	ClickHouse  *pkgch.Client
	Redis       *pkgcache.RedisCache
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
	log *applogger.Logger
}

func New(d Deps) *App {
	log := d.Logger
	if log == nil {
		log = applogger.Nop()
	}
	return &App{Deps: d, log: log}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches background components and the HTTP server.
func (a *App) Start() error {
	// repeated errors are aggregated and shipped to Kafka
	if a.Producer != nil && a.Config.Kafka.LogTopic != "" {
		a.log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.Config.Kafka.LogTopic,
			Publisher:      a.Producer,
		})
	}

	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	if a.Consumer != nil && a.ScanHandler != nil {
		a.Consumer.RegisterHandler(a.ScanHandler)
		go func() {
			if err := a.Consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.ScanHandler.Topic()))
	}

	if err := a.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("finscore started",
		applogger.Int("port", a.Config.Server.Port),
		applogger.String("provider", a.Config.Provider.Type),
		applogger.Bool("kafka", a.Producer != nil),
		applogger.Bool("redis", a.Redis != nil),
	)
	return nil
}

// Shutdown stops intake first, then running scans, then infrastructure.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if err := a.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop(ctx)
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.Scans != nil {
		a.Scans.CancelAll()
	}

	a.log.RemoveCollector()
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
