package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/api/forms"
	authMiddleware "github.com/improveclean/cleaning-site/internal/middleware"
	authService "github.com/improveclean/cleaning-site/internal/service/auth"
)

const (
	MsgWelcome  = "Welcome to ImproveClean! Your account is ready and you can schedule cleanings immediately."
	MsgSignedIn = "Successfully signed in."
)

type AuthHandler struct {
	log          *zap.Logger
	svc          *authService.AuthService
	auth         *authMiddleware.Authenticator
	secureCookie bool
}

func NewAuthHandler(log *zap.Logger, svc *authService.AuthService, auth *authMiddleware.Authenticator, secureCookie bool) *AuthHandler {
	return &AuthHandler{log: log, svc: svc, auth: auth, secureCookie: secureCookie}
}

func (h *AuthHandler) Register(r *gin.Engine) {
	r.GET("/register/", h.signupForm)
	r.POST("/register/", h.signup)
	r.GET("/login/", h.loginForm)
	r.POST("/login/", h.login)

	// Protected routes
	protected := r.Group("/")
	protected.Use(h.auth.Required())
	{
		protected.POST("/logout/", h.logout)
		protected.GET("/account/", h.getProfile)
		protected.POST("/account/", h.updateProfile)
	}
}

func (h *AuthHandler) signupForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fields": []string{"first_name", "last_name", "username", "email", "password1", "password2"},
	})
}

func (h *AuthHandler) signup(c *gin.Context) {
	var req authService.SignupRequest
	if !forms.Bind(c, &req) {
		return
	}

	resp, err := h.svc.Signup(c.Request.Context(), req)
	if err != nil {
		forms.Fail(c, h.log, err)
		return
	}

	h.setSession(c, resp)
	c.JSON(http.StatusCreated, gin.H{"message": MsgWelcome, "token": resp.Token, "user": resp.User, "expires": resp.Expires})
}

func (h *AuthHandler) loginForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fields": []string{"username", "password"}})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req authService.LoginRequest
	if !forms.Bind(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, authService.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Please enter a correct username and password. Note that both fields may be case-sensitive.",
			})
			return
		}
		h.log.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.setSession(c, resp)
	c.JSON(http.StatusOK, gin.H{"message": MsgSignedIn, "token": resp.Token, "user": resp.User, "expires": resp.Expires})
}

func (h *AuthHandler) logout(c *gin.Context) {
	err := h.svc.Logout(c.Request.Context(), authMiddleware.SessionKey(c), authMiddleware.SessionExpiry(c))
	if err != nil {
		h.log.Error("Logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authMiddleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) getProfile(c *gin.Context) {
	profile, err := h.svc.GetProfile(c.Request.Context(), authMiddleware.UserID(c))
	if err != nil {
		if errors.Is(err, authService.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.log.Error("Get profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) updateProfile(c *gin.Context) {
	var req authService.ProfileRequest
	if !forms.Bind(c, &req) {
		return
	}

	profile, err := h.svc.UpdateProfile(c.Request.Context(), authMiddleware.UserID(c), req)
	if err != nil {
		if errors.Is(err, authService.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		forms.Fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": profile})
}

func (h *AuthHandler) setSession(c *gin.Context, resp *authService.LoginResponse) {
	maxAge := int(time.Until(resp.Expires).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(authMiddleware.SessionCookie, resp.Token, maxAge, "/", "", h.secureCookie, true)
}
