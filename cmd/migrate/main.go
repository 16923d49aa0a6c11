package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/config"
	"github.com/improveclean/cleaning-site/internal/logger"
	"github.com/improveclean/cleaning-site/internal/store/migrate"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.Env, "migrate")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := migrate.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	m := migrate.NewMigrator(db, log)
	applied, err := m.Up(ctx)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	history, err := m.History(ctx)
	if err != nil {
		log.Fatal("read history", zap.Error(err))
	}
	log.Info("migrations done", zap.Bool("applied", applied), zap.Int("revisions", len(history)))
}
