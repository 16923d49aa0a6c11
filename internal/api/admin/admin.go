package admin

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/api/forms"
	"github.com/improveclean/cleaning-site/internal/export"
	jwtMiddleware "github.com/improveclean/cleaning-site/internal/middleware"
	"github.com/improveclean/cleaning-site/internal/service/applications"
	"github.com/improveclean/cleaning-site/internal/service/bookings"
	"github.com/improveclean/cleaning-site/internal/service/reports"
	"github.com/improveclean/cleaning-site/internal/service/workers"
	storeApplications "github.com/improveclean/cleaning-site/internal/store/applications"
	storeBookings "github.com/improveclean/cleaning-site/internal/store/bookings"
	storeWorkers "github.com/improveclean/cleaning-site/internal/store/workers"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandler struct {
	log          *zap.Logger
	reports      *reports.ReportsService
	bookings     *bookings.BookingsService
	workers      *workers.WorkersService
	applications *applications.ApplicationsService
	exporter     *export.Exporter
	auth         *jwtMiddleware.Authenticator
	loc          *time.Location
}

func NewAdminHandler(
	log *zap.Logger,
	reports *reports.ReportsService,
	bookings *bookings.BookingsService,
	workers *workers.WorkersService,
	applications *applications.ApplicationsService,
	exporter *export.Exporter,
	auth *jwtMiddleware.Authenticator,
	loc *time.Location,
) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{
		log:          log,
		reports:      reports,
		bookings:     bookings,
		workers:      workers,
		applications: applications,
		exporter:     exporter,
		auth:         auth,
		loc:          loc,
	}
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/admin")
	g.Use(h.auth.RequireSuperuser())
	{
		g.GET("/", h.index)
		g.GET("/bookings/", h.listBookings)
		g.PATCH("/bookings/:id/", h.updateBooking)
		g.GET("/workers/", h.listWorkers)
		g.POST("/workers/", h.createWorker)
		g.GET("/workers/:id/", h.getWorker)
		g.PUT("/workers/:id/", h.updateWorker)
		g.DELETE("/workers/:id/", h.deleteWorker)
		g.GET("/applications/", h.listApplications)
		g.POST("/applications/:id/review/", h.reviewApplication)
		g.GET("/export.xlsx", h.exportBookings)
	}

	r.GET("/worker/bookings/:id/", h.auth.RequireSuperuser(), h.getWorker)
}

func (h *AdminHandler) index(c *gin.Context) {
	visit := &reports.Visit{
		SessionKey: jwtMiddleware.SessionKey(c),
		UserAgent:  c.Request.UserAgent(),
	}
	if uid := jwtMiddleware.UserID(c); uid != 0 {
		visit.UserID = &uid
	}

	d, err := h.reports.Dashboard(c.Request.Context(), c.Request.URL.Path, visit)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *AdminHandler) listBookings(c *gin.Context) {
	f := storeBookings.Filter{
		Status:         c.Query("status"),
		WorkerResponse: c.Query("worker_response"),
		ServiceType:    c.Query("service_type"),
		Query:          strings.TrimSpace(c.Query("q")),
		Limit:          forms.QueryInt(c, "limit", 50),
		Offset:         forms.QueryInt(c, "offset", 0),
	}
	list, err := h.bookings.Search(c.Request.Context(), f)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	if list == nil {
		list = []*storeBookings.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "limit": f.Limit, "offset": f.Offset})
}

func (h *AdminHandler) updateBooking(c *gin.Context) {
	id, ok := forms.ParamID(c, "id")
	if !ok {
		return
	}
	var req bookings.AdminUpdateRequest
	if !forms.Bind(c, &req) {
		return
	}
	b, err := h.bookings.AdminUpdate(c.Request.Context(), id, req)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *AdminHandler) listWorkers(c *gin.Context) {
	f := storeWorkers.Filter{
		ServiceFocus: c.Query("service_focus"),
		Active:       forms.QueryBool(c, "is_active"),
		Query:        strings.TrimSpace(c.Query("q")),
	}
	list, err := h.workers.List(c.Request.Context(), f)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	if list == nil {
		list = []*storeWorkers.Worker{}
	}
	c.JSON(http.StatusOK, gin.H{"workers": list})
}

func (h *AdminHandler) createWorker(c *gin.Context) {
	var in workers.WorkerInput
	if !forms.Bind(c, &in) {
		return
	}
	w, err := h.workers.Create(c.Request.Context(), in)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// getWorker serves both the worker admin page and the schedule view.
func (h *AdminHandler) getWorker(c *gin.Context) {
	id, ok := forms.ParamID(c, "id")
	if !ok {
		return
	}
	s, err := h.workers.Schedule(c.Request.Context(), id)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *AdminHandler) updateWorker(c *gin.Context) {
	id, ok := forms.ParamID(c, "id")
	if !ok {
		return
	}
	var in workers.WorkerInput
	if !forms.Bind(c, &in) {
		return
	}
	w, err := h.workers.Update(c.Request.Context(), id, in)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminHandler) deleteWorker(c *gin.Context) {
	id, ok := forms.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.workers.Delete(c.Request.Context(), id); err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) listApplications(c *gin.Context) {
	f := storeApplications.Filter{
		Reviewed: forms.QueryBool(c, "reviewed"),
		Query:    strings.TrimSpace(c.Query("q")),
		Limit:    forms.QueryInt(c, "limit", 50),
		Offset:   forms.QueryInt(c, "offset", 0),
	}
	list, err := h.applications.List(c.Request.Context(), f)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": list})
}

func (h *AdminHandler) reviewApplication(c *gin.Context) {
	id, ok := forms.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.applications.MarkReviewed(c.Request.Context(), id); err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application marked as reviewed"})
}

func (h *AdminHandler) exportBookings(c *gin.Context) {
	from, to, err := export.Range(c.Query("from"), c.Query("to"), time.Now(), h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	n, err := h.exporter.Write(c.Request.Context(), &buf, from, to)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(from, to)+`"`)
	c.Header("X-Export-Rows", strconv.Itoa(n))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
