package pages

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/improveclean/cleaning-site/internal/store"
)

const (
	siteName = "ImproveClean"
	tagline  = "Professional home and office cleaning, booked in minutes."
)

var serviceDescriptions = map[store.ServiceType]string{
	store.ServiceStandard: "Recurring upkeep for kitchens, bathrooms, floors and living spaces.",
	store.ServiceDeep:     "Top-to-bottom cleaning including baseboards, appliances and fixtures.",
	store.ServiceMoveOut:  "Empty-home cleaning so you can hand over or move in without worry.",
	store.ServiceOffice:   "After-hours cleaning for workspaces, meeting rooms and shared areas.",
}

type Service struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type PagesHandler struct{}

func NewPagesHandler() *PagesHandler { return &PagesHandler{} }

func (h *PagesHandler) Register(r *gin.Engine) {
	r.GET("/", h.landing)
	r.GET("/about/", h.about)
	r.GET("/services/", h.services)
}

func (h *PagesHandler) landing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    siteName,
		"tagline": tagline,
		"links": gin.H{
			"services":      "/services/",
			"about":         "/about/",
			"register":      "/register/",
			"login":         "/login/",
			"dashboard":     "/dashboard/",
			"work_with_us":  "/work-with-us/",
			"documentation": "/docs",
		},
	})
}

func (h *PagesHandler) about(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name": siteName,
		"about": "We are a team of vetted, insured cleaners. Choose a service, pick a time " +
			"and, if you like, the cleaner you want. Bookings within five hours are handled as rush service.",
	})
}

func (h *PagesHandler) services(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": Catalogue()})
}

// Catalogue lists every service type in display order.
func Catalogue() []Service {
	out := make([]Service, 0, len(store.ServiceChoices))
	for _, ch := range store.ServiceChoices {
		out = append(out, Service{Code: ch.Code, Label: ch.Label, Description: serviceDescriptions[store.ServiceType(ch.Code)]})
	}
	return out
}
