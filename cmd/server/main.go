package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/api"
	"github.com/improveclean/cleaning-site/internal/config"
	"github.com/improveclean/cleaning-site/internal/export"
	kafkax "github.com/improveclean/cleaning-site/internal/kafka"
	"github.com/improveclean/cleaning-site/internal/logger"
	"github.com/improveclean/cleaning-site/internal/middleware"
	redisx "github.com/improveclean/cleaning-site/internal/redis"
	applicationsService "github.com/improveclean/cleaning-site/internal/service/applications"
	authService "github.com/improveclean/cleaning-site/internal/service/auth"
	bookingsService "github.com/improveclean/cleaning-site/internal/service/bookings"
	reportsService "github.com/improveclean/cleaning-site/internal/service/reports"
	workersService "github.com/improveclean/cleaning-site/internal/service/workers"
	"github.com/improveclean/cleaning-site/internal/store"
	storeApplications "github.com/improveclean/cleaning-site/internal/store/applications"
	storeBookings "github.com/improveclean/cleaning-site/internal/store/bookings"
	storePageViews "github.com/improveclean/cleaning-site/internal/store/pageviews"
	storeReports "github.com/improveclean/cleaning-site/internal/store/reports"
	storeUsers "github.com/improveclean/cleaning-site/internal/store/users"
	storeWorkers "github.com/improveclean/cleaning-site/internal/store/workers"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.Env, "server")
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.PostgresURL, int32(cfg.MaxDBConnections))
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	loc := cfg.Location()

	// Create repositories
	usersRepo := storeUsers.NewUsersRepository(db, log)
	bookingsRepo := storeBookings.NewBookingsRepository(db, log)
	workersRepo := storeWorkers.NewWorkersRepository(db, log)
	applicationsRepo := storeApplications.NewApplicationsRepository(db, log)
	reportsRepo := storeReports.NewReportsRepository(db, log)
	pageViewsRepo := storePageViews.NewPageViewsRepository(db, log)

	// Create default admin user
	created, err := config.CreateDefaultAdmin(ctx, &cfg, usersRepo)
	if err != nil {
		log.Error("Failed to create default admin user", zap.Error(err))
	} else if created {
		log.Info("Default admin user created", zap.String("username", cfg.AdminUsername))
	}

	rdb := redisx.NewClient(cfg.RedisAddr)
	defer rdb.Close()
	sessions := redisx.NewSessions(rdb)

	prod := kafkax.NewProducer(log, cfg.Brokers(), cfg.KafkaTopic)
	defer prod.Close()

	svc := api.Services{
		Auth:         authService.NewAuthService(log, usersRepo, sessions, cfg.JWTSigningSecret, cfg.SessionTTL()),
		Bookings:     bookingsService.NewBookingsService(log, bookingsRepo, workersRepo, prod, loc, cfg.RushThreshold()),
		Workers:      workersService.NewWorkersService(log, workersRepo, bookingsRepo, loc),
		Applications: applicationsService.NewApplicationsService(log, applicationsRepo, prod),
		Reports:      reportsService.NewReportsService(log, reportsRepo, bookingsRepo, pageViewsRepo, loc),
		Exporter:     export.NewExporter(log, bookingsRepo, loc),
	}
	authn := middleware.NewAuthenticator(log, cfg.JWTSigningSecret, sessions, usersRepo)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.HybridRateLimit(rdb, cfg.RateLimitRPS, cfg.RateLimitBurst))

	api.RegisterRoutes(r, log, &cfg, authn, svc, db)

	// metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   20 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("server starting", zap.Int("port", cfg.HTTPPort), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	log.Info("server exited")
}
