// Command migrate applies or rolls back the embedded schema.
//
//	migrate up
//	migrate down
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"bus-booking/internal/config"
	"bus-booking/migrations"
	"bus-booking/pkg/logger"
	"bus-booking/pkg/utils"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[len(os.Args)-1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		log.Error("migrate driver init failed", "err", err)
		os.Exit(1)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Error("migration source init failed", "err", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		log.Error("migrate init failed", "err", err)
		os.Exit(1)
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		log.Error("unknown command, want up or down", "cmd", cmd)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("migration failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}

	version, dirty, _ := m.Version()
	log.Info("migration complete", "cmd", cmd, "version", version, "dirty", dirty)
}
