package bookings

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/api/forms"
	jwtMiddleware "github.com/improveclean/cleaning-site/internal/middleware"
	"github.com/improveclean/cleaning-site/internal/service/bookings"
)

type BookingsHandler struct {
	log  *zap.Logger
	svc  *bookings.BookingsService
	auth *jwtMiddleware.Authenticator
}

func NewBookingsHandler(log *zap.Logger, svc *bookings.BookingsService, auth *jwtMiddleware.Authenticator) *BookingsHandler {
	return &BookingsHandler{log: log, svc: svc, auth: auth}
}

func (h *BookingsHandler) Register(r *gin.Engine) {
	// Protected routes
	protected := r.Group("/")
	protected.Use(h.auth.Required())
	{
		protected.GET("/dashboard/", h.dashboard)
		protected.POST("/dashboard/", h.book)
		protected.POST("/bookings/:id/cancel/", h.cancel)
	}
}

func pickerFilter(c *gin.Context) bookings.PickerFilter {
	f := bookings.PickerFilter{
		Service: c.Query("team_service"),
		Search:  c.Query("team_search"),
	}
	if id, err := strconv.ParseInt(c.Query("worker"), 10, 64); err == nil && id > 0 {
		f.Selected = &id
	}
	return f
}

func (h *BookingsHandler) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), jwtMiddleware.UserID(c), pickerFilter(c))
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *BookingsHandler) book(c *gin.Context) {
	var req bookings.CreateRequest
	if !forms.Bind(c, &req) {
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), jwtMiddleware.UserID(c), req)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *BookingsHandler) cancel(c *gin.Context) {
	id, ok := forms.ParamID(c, "id")
	if !ok {
		return
	}
	b, err := h.svc.Cancel(c.Request.Context(), id, jwtMiddleware.UserID(c))
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": bookings.MsgCancelled, "booking": b})
}
