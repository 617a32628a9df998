package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/watchroom/server/internal/controller"
	connInmemory "github.com/watchroom/server/internal/repository/connection/inmemory"
	readinessRedis "github.com/watchroom/server/internal/repository/readiness/redis"
	roomRedis "github.com/watchroom/server/internal/repository/room/redis"
	"github.com/watchroom/server/internal/service/readiness"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/internal/service/sync"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/redisclient"
)

type AppConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`

	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"-"`

	InviteCodeLength   int `json:"invite_code_length"`
	InviteCodeAttempts int `json:"invite_code_attempts"`

	ReadinessStaleAfterSec int     `json:"readiness_stale_after_sec"`
	SyncPollIntervalMs     int     `json:"sync_poll_interval_ms"`
	SyncMaxWaitSec         int     `json:"sync_max_wait_sec"`
	DriftToleranceSec      float64 `json:"drift_tolerance_sec"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.InviteCodeLength < 4 {
		return fmt.Errorf("invite code length must be at least 4")
	}
	if cfg.InviteCodeAttempts < 1 {
		return fmt.Errorf("invite code attempts must be greater than 0")
	}
	if cfg.ReadinessStaleAfterSec < 1 {
		return fmt.Errorf("readiness staleness threshold must be greater than 0")
	}
	if cfg.SyncPollIntervalMs < 1 {
		return fmt.Errorf("sync poll interval must be greater than 0")
	}
	if cfg.SyncMaxWaitSec < 1 {
		return fmt.Errorf("sync max wait must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}
	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomRedis.NewRepo(rc, logger)
	readinessRepo := readinessRedis.NewRepo(rc, logger)
	connRepo := connInmemory.NewRepo(logger)

	tracker := readiness.NewTracker(readinessRepo, time.Duration(cfg.ReadinessStaleAfterSec)*time.Second, logger)
	roomService := room.NewService(roomRepo, tracker, &room.Config{
		InviteCodeLength:   cfg.InviteCodeLength,
		InviteCodeAttempts: cfg.InviteCodeAttempts,
	}, logger)

	coordinator := sync.NewCoordinator(tracker, roomService, connRepo, &sync.Config{
		PollInterval:   time.Duration(cfg.SyncPollIntervalMs) * time.Millisecond,
		MaxWait:        time.Duration(cfg.SyncMaxWaitSec) * time.Second,
		DriftTolerance: time.Duration(cfg.DriftToleranceSec * float64(time.Second)),
	}, logger)
	roomService.SetSyncNotifier(coordinator)

	ctrl := controller.NewController(roomService, tracker, coordinator, connRepo, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		coordinator.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
