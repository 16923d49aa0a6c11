package applications

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/api/forms"
	"github.com/improveclean/cleaning-site/internal/service/applications"
)

type ApplicationsHandler struct {
	log *zap.Logger
	svc *applications.ApplicationsService
}

func NewApplicationsHandler(log *zap.Logger, svc *applications.ApplicationsService) *ApplicationsHandler {
	return &ApplicationsHandler{log: log, svc: svc}
}

func (h *ApplicationsHandler) Register(r *gin.Engine) {
	r.GET("/work-with-us/", h.form)
	r.POST("/work-with-us/", h.submit)
}

func (h *ApplicationsHandler) form(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":  "Work with us",
		"fields": []string{"full_name", "email", "phone", "experience"},
	})
}

func (h *ApplicationsHandler) submit(c *gin.Context) {
	var req applications.SubmitRequest
	if !forms.Bind(c, &req) {
		return
	}
	a, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": applications.MsgReceived, "application": a})
}
