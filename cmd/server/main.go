package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/cache"
	"github.com/IlyushaZ/rental-store/pkg/config"
	"github.com/IlyushaZ/rental-store/pkg/database"
	"github.com/IlyushaZ/rental-store/pkg/database/memory"
	"github.com/IlyushaZ/rental-store/pkg/events"
	"github.com/IlyushaZ/rental-store/pkg/identity"
	"github.com/IlyushaZ/rental-store/pkg/limiter"
	"github.com/IlyushaZ/rental-store/pkg/locker"
	"github.com/IlyushaZ/rental-store/pkg/server"
	"github.com/IlyushaZ/rental-store/pkg/service"
	"github.com/IlyushaZ/rental-store/pkg/tracing"
	"github.com/redis/go-redis/v9"
)

const (
	gracefulTimeout = time.Second * 15
)

// storage bundles what the services need from the persistence layer.
type storage struct {
	store    database.Store
	items    database.ItemRepository
	attempts database.AttemptRepository
	close    func() error
}

func main() {
	cfg := config.New()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("### Can't init tracing: %v", err)
	}

	st, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("### Can't init storage: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var closeRedis func() error

		rdb, closeRedis, err = cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisUser, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("### Can't init redis: %v", err)
		}
		defer closeRedis()
	}

	publisher, closePublisher := newPublisher(cfg)

	svc := composeServices(st, rdb, publisher, cfg)

	srv := server.New(cfg.ListenAddr, svc, &identity.Authenticator{Secret: cfg.JWTSecret})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("### Can't listen and serve: %v", err)
		}
	}()
	slog.Info(fmt.Sprintf("HTTP server listening at %s", srv.Addr), slog.String("storage", cfg.Storage))

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("can't shutdown server", slog.Any("error", err))
	}

	// attempts buffered in memory are flushed only after the server stops taking requests
	if err := st.close(); err != nil {
		slog.Error("can't close storage", slog.Any("error", err))
	}
	if err := closePublisher(); err != nil {
		slog.Error("can't close publisher", slog.Any("error", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("can't shutdown tracing", slog.Any("error", err))
	}
}

func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		slog.Warn("using in-memory storage, data will be lost on restart")

		m := memory.New()
		return &storage{store: m, items: m.Items(), attempts: m, close: func() error { return nil }}, nil

	case config.StoragePostgres:
		db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
		if err != nil {
			return nil, err
		}

		if cfg.RunMigrations {
			if err := database.Migrate(db); err != nil {
				_ = closeDB()
				return nil, fmt.Errorf("can't migrate: %w", err)
			}
		}

		pg := database.NewPostgres(db)
		attempts := database.NewAttemptBatchingDatabase(&database.AttemptDatabase{DB: db}, cfg.AttemptsBatchSize, cfg.AttemptsFlushInterval)

		return &storage{
			store:    pg,
			items:    pg.Items(),
			attempts: attempts,
			close: func() error {
				return errors.Join(attempts.Close(), closeDB())
			},
		}, nil
	}

	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

func newPublisher(cfg *config.Config) (events.Publisher, func() error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return events.Nop{}, func() error { return nil }
	}

	k := events.NewKafka(cfg.KafkaTopic, brokers...)
	slog.Info("publishing domain events", slog.String("topic", cfg.KafkaTopic), slog.String("brokers", strings.Join(brokers, ",")))

	return k, k.Close
}

func composeServices(st *storage, rdb *redis.Client, publisher events.Publisher, cfg *config.Config) server.Services {
	var lock locker.Locker = locker.NewKeyedMutex()
	if cfg.DistributedLock {
		if rdb == nil {
			log.Fatal("### Distributed lock requires redis")
		}
		lock = locker.Multi{lock, &locker.Redis{Client: rdb, TTL: cfg.LockTTL, Wait: cfg.LockWait}}
	}

	var booking service.Booking = &service.BookingGeneric{
		Store:      st.store,
		Locker:     lock,
		Attempts:   st.attempts,
		Retries:    cfg.ReserveRetries,
		RetryDelay: cfg.ReserveRetryDelay,
	}
	booking = &service.BookingPublishing{Booking: booking, Publisher: publisher}
	if rdb != nil && cfg.RentalsLimit > 0 {
		booking = &service.BookingLimiting{
			Booking:  booking,
			Limiter:  &limiter.Limiter{Redis: rdb, Limit: cfg.RentalsLimit},
			FailOpen: cfg.LimiterFailOpen,
		}
	}
	booking = &service.BookingMetrics{Booking: booking}
	booking = &service.BookingLogging{Booking: booking}

	var order service.Order = &service.OrderGeneric{
		Store:      st.store,
		Locker:     lock,
		Retries:    cfg.ReserveRetries,
		RetryDelay: cfg.ReserveRetryDelay,
	}
	order = &service.OrderPublishing{Order: order, Publisher: publisher}
	if rdb != nil && cfg.CacheCarts {
		order = &service.OrderCaching{Order: order, Cache: &cache.CartRedis{Client: rdb, TTL: cfg.CartTTL}}
	}
	order = &service.OrderMetrics{Order: order}
	order = &service.OrderLogging{Order: order}

	return server.Services{
		Item:    &service.ItemGeneric{ItemRepository: st.items},
		Booking: booking,
		Order:   order,
	}
}

func parseLogLevel(lvl string) slog.Level {
	switch strings.ToUpper(lvl) {
	case slog.LevelDebug.String():
		return slog.LevelDebug
	case slog.LevelInfo.String():
		return slog.LevelInfo
	case slog.LevelWarn.String(), "WARNING":
		return slog.LevelWarn
	case slog.LevelError.String():
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
