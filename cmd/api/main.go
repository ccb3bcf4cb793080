package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus-booking/internal/audit"
	"bus-booking/internal/auth"
	"bus-booking/internal/booking"
	"bus-booking/internal/cancellation"
	"bus-booking/internal/config"
	"bus-booking/internal/fleet"
	"bus-booking/internal/httpapi"
	"bus-booking/internal/inventory"
	"bus-booking/internal/notify"
	"bus-booking/internal/receipt"
	"bus-booking/internal/reporting"
	"bus-booking/internal/tickets"
	"bus-booking/internal/users"
	"bus-booking/internal/wallet"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional and never overrides the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis only backs idempotency replay and the booking gate, both of
	// which degrade to pass-through without it.
	var rdb *redis.Client
	if client, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()}); err != nil {
		log.Warn("redis unavailable, idempotency and booking gate disabled", "err", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	notifier, err := notify.New(cfg.Notify, log)
	if err != nil {
		log.Error("notifier init failed", "err", err)
		os.Exit(1)
	}
	defer notifier.Close()
	dispatcher := notify.NewDispatcher(notifier, 5*time.Second)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	ticketSvc := tickets.NewService(db, auditSvc)
	walletSvc := wallet.NewService(db, wallet.Settings{
		Currency:   cfg.Wallet.Currency,
		MinDeposit: cfg.Wallet.MinDeposit,
		MaxDeposit: cfg.Wallet.MaxDeposit,
	}, auditSvc, dispatcher)

	h := httpapi.Handlers{
		Auth:     authManager,
		Accounts: users.NewService(db, cfg.Auth.AdminEmails),
		Wallets:  walletSvc,
		Fleet:    fleet.NewService(db, auditSvc),
		Seats:    inventory.NewService(db),
		Tickets:  ticketSvc,
		Booking:  booking.NewService(db, cfg.Booking.MaxSeats, dispatcher),
		Cancel:   cancellation.NewService(db, cfg.Booking.CancelCutoff, auditSvc, dispatcher),
		Reports:  reporting.NewService(reporting.NewPostgresRepo(db)),
		Receipts: receipt.NewService(db, ticketSvc, cfg.Wallet.Currency),
		BusGate:  httpapi.NewBusGate(rdb, cfg.Booking.BusConcurrency, 30*time.Second),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	if len(cfg.HTTP.CORSAllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowedOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", httpapi.HeaderIdempotencyKey, logger.HeaderRequestID)
		corsCfg.ExposeHeaders = []string{logger.HeaderRequestID, httpapi.HeaderReplayed}
		r.Use(cors.New(corsCfg))
	}

	registerRoutes(r, routeDeps{
		handlers:       h,
		authMW:         auth.RequireAccessToken(authManager),
		db:             db,
		rdb:            rdb,
		idempotencyTTL: cfg.Booking.IdempotencyTTL,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("notifications still pending at shutdown", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
