package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/api/admin"
	"github.com/improveclean/cleaning-site/internal/api/applications"
	"github.com/improveclean/cleaning-site/internal/api/auth"
	"github.com/improveclean/cleaning-site/internal/api/bookings"
	"github.com/improveclean/cleaning-site/internal/api/pages"
	"github.com/improveclean/cleaning-site/internal/config"
	"github.com/improveclean/cleaning-site/internal/export"
	"github.com/improveclean/cleaning-site/internal/middleware"
	applicationsService "github.com/improveclean/cleaning-site/internal/service/applications"
	authService "github.com/improveclean/cleaning-site/internal/service/auth"
	bookingsService "github.com/improveclean/cleaning-site/internal/service/bookings"
	reportsService "github.com/improveclean/cleaning-site/internal/service/reports"
	workersService "github.com/improveclean/cleaning-site/internal/service/workers"
)

// Services bundles everything the handlers depend on.
type Services struct {
	Auth         *authService.AuthService
	Bookings     *bookingsService.BookingsService
	Workers      *workersService.WorkersService
	Applications *applicationsService.ApplicationsService
	Reports      *reportsService.ReportsService
	Exporter     *export.Exporter
}

// Pinger is satisfied by store.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes wires all HTTP routes.
func RegisterRoutes(r *gin.Engine, log *zap.Logger, cfg *config.Config, authn *middleware.Authenticator, svc Services, db Pinger) {
	r.Use(middleware.MetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	RegisterDocs(r)

	secureCookie := cfg.Env == "production"

	// Register handlers
	pages.NewPagesHandler().Register(r)
	auth.NewAuthHandler(log, svc.Auth, authn, secureCookie).Register(r)
	bookings.NewBookingsHandler(log, svc.Bookings, authn).Register(r)
	applications.NewApplicationsHandler(log, svc.Applications).Register(r)
	admin.NewAdminHandler(log, svc.Reports, svc.Bookings, svc.Workers, svc.Applications, svc.Exporter, authn, cfg.Location()).Register(r)
}
