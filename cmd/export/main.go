package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/config"
	"github.com/improveclean/cleaning-site/internal/export"
	"github.com/improveclean/cleaning-site/internal/logger"
	"github.com/improveclean/cleaning-site/internal/store"
	storeBookings "github.com/improveclean/cleaning-site/internal/store/bookings"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	from := flag.String("from", "", "first day to include (YYYY-MM-DD or RFC 3339)")
	to := flag.String("to", "", "last day to include (YYYY-MM-DD or RFC 3339)")
	out := flag.String("out", cfg.ExportDir, "output directory")
	flag.Parse()

	log := logger.New(cfg.Env, "export")
	defer func() { _ = log.Sync() }()

	loc := cfg.Location()
	start, end, err := export.Range(*from, *to, time.Now(), loc)
	if err != nil {
		log.Fatal("invalid range", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := store.NewDB(ctx, cfg.PostgresURL, int32(cfg.MaxDBConnections))
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	exp := export.NewExporter(log, storeBookings.NewBookingsRepository(db, log), loc)
	path, err := exp.SaveAs(ctx, *out, start, end)
	if err != nil {
		log.Fatal("export failed", zap.Error(err))
	}
	log.Info("export written", zap.String("path", path), zap.Time("from", start), zap.Time("to", end))
}
