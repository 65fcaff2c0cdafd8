package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/transport-booking/internal/config"
	"github.com/iliyamo/transport-booking/internal/database"
	"github.com/iliyamo/transport-booking/internal/handler"
	"github.com/iliyamo/transport-booking/internal/logger"
	"github.com/iliyamo/transport-booking/internal/middleware"
	"github.com/iliyamo/transport-booking/internal/queue"
	"github.com/iliyamo/transport-booking/internal/repository"
	"github.com/iliyamo/transport-booking/internal/repository/memstore"
	"github.com/iliyamo/transport-booking/internal/router"
	"github.com/iliyamo/transport-booking/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("store unavailable", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		lg.Warn("redis unreachable; availability cache, rate limiting and report cache disabled")
	} else {
		defer rdb.Close()
	}

	var notifier service.Notifier
	if cfg.NotificationsEnabled {
		notifier = queue.NewPublisher(cfg.RabbitURL, lg)
		consumer := queue.NewConsumer(cfg.RabbitURL, queue.FileMailbox{Dir: cfg.MailboxDir}, lg)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	ledger := service.NewLoyaltyLedger(cfg.LoyaltyThreshold, cfg.BonusValidity, service.UUIDCodes)
	cache := service.NewAvailabilityCache(rdb, cfg.AvailabilityCacheTTL)
	bookings := service.NewBookingService(store, ledger, cache, notifier, lg)
	cancels := service.NewCancellationService(store, ledger, lg)
	payments := service.NewPaymentService(store, lg)
	schedules := service.NewScheduleService(store, cache, lg)
	reports := service.NewReportService(store)

	e := echo.New()
	e.HideBanner = true
	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, pinger, handler.NewPublicHandler(schedules, lg))
	router.RegisterCustomer(e, handler.NewBookingHandler(bookings, cancels, payments, lg), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg))
	router.RegisterStaff(e, handler.NewStaffHandler(schedules, cancels, reports, lg), cfg.JWTSecret,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, lg))

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

// openStore returns the configured store; db is nil for the memory store.
func openStore(ctx context.Context, cfg config.Config, lg *zap.Logger) (repository.Store, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		st := memstore.New()
		st.SeedDemo()
		lg.Info("using in-memory store with demo data")
		return st, nil, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewMySQLStore(db), db, nil
}
