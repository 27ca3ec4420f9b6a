package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/decision-board/internal/config"
	"github.com/iliyamo/decision-board/internal/database"
	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/queue"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/router"
	"github.com/iliyamo/decision-board/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	logger.SetDefault(log)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("open database", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		log.Info("migrations applied", "driver", cfg.DBDriver)
		return
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.AuditEnabled {
		events = &service.AMQPPublisher{URL: cfg.AMQPURL}
		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, LogPath: cfg.AuditLogPath, Log: log.With("component", "audit")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	approvals := service.NewApprovalCoordinator(repository.NewDecisionRepo(db), events, log)
	e := router.New(router.Deps{
		Cfg:            cfg,
		DB:             db,
		Redis:          rdb,
		Events:         events,
		Approvals:      approvals,
		Log:            log,
		RateLimit:      config.LoadRateLimitConfig(),
		LoginRateLimit: config.LoadLoginRateLimitConfig(),
		Cache:          config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	approvals.Wait()
	log.Info("stopped")
}
