package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "improveclean_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "improveclean_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"backend"})

	BookingRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "improveclean_booking_requests_total",
		Help: "Booking outcomes",
	}, []string{"outcome"})

	RushBookingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "improveclean_rush_bookings_total",
		Help: "Bookings flagged as rush cleanings",
	})

	DashboardBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "improveclean_dashboard_build_duration_seconds",
		Help:    "Time spent assembling the admin dashboard",
		Buckets: prometheus.DefBuckets,
	})

	AdminPageViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "improveclean_admin_page_views_total",
		Help: "Recorded admin dashboard views",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "improveclean_notifications_total",
		Help: "Notification deliveries by event type and outcome",
	}, []string{"type", "outcome"})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "improveclean_notification_duration_seconds",
		Help:    "Notification handler duration",
		Buckets: prometheus.DefBuckets,
	})

	ExportRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "improveclean_export_rows_total",
		Help: "Booking rows written to spreadsheet exports",
	})
)
