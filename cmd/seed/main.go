// seed upserts the fixed college and category rows. Safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dip-aaa/web-project-sub002/internal/catalog"
	catalogrepo "github.com/dip-aaa/web-project-sub002/internal/catalog/repository"
	"github.com/dip-aaa/web-project-sub002/internal/config"
	"github.com/dip-aaa/web-project-sub002/internal/db"
	"github.com/dip-aaa/web-project-sub002/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	res, err := catalog.Seed(ctx, catalogrepo.NewPostgresRepository(conn))
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed complete", zap.Int("colleges", res.Colleges), zap.Int("categories", res.Categories))
}
