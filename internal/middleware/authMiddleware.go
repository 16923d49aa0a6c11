package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookie carries the token for browser clients.
const SessionCookie = "session"

const (
	ctxUserID     = "uid"
	ctxSuperuser  = "su"
	ctxSessionKey = "session_key"
	ctxExpiresAt  = "session_expires"
)

type Claims struct {
	UserID    int64 `json:"uid"`
	Superuser bool  `json:"su"`
	jwt.RegisteredClaims
}

// RevocationChecker is satisfied by redisx.Sessions.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionKey string) (bool, error)
}

// UserLookup reports whether a user is still an active superuser.
type UserLookup interface {
	IsActiveSuperuser(ctx context.Context, userID int64) (bool, error)
}

type Authenticator struct {
	log     *zap.Logger
	secret  string
	revoked RevocationChecker
	users   UserLookup
}

func NewAuthenticator(log *zap.Logger, secret string, revoked RevocationChecker, users UserLookup) *Authenticator {
	return &Authenticator{log: log, secret: secret, revoked: revoked, users: users}
}

var errNoToken = errors.New("missing token")

func (a *Authenticator) parse(c *gin.Context) (*Claims, error) {
	tokenStr := ""
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenStr = strings.TrimPrefix(h, "Bearer ")
	} else if v, err := c.Cookie(SessionCookie); err == nil {
		tokenStr = v
	}
	if tokenStr == "" {
		return nil, errNoToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims := token.Claims.(*Claims)

	if a.revoked != nil && claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			a.log.Warn("session revocation check failed", zap.Error(err))
		} else if revoked {
			return nil, errors.New("session revoked")
		}
	}
	return claims, nil
}

func setClaims(c *gin.Context, claims *Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxSuperuser, claims.Superuser)
	c.Set(ctxSessionKey, claims.ID)
	if claims.ExpiresAt != nil {
		c.Set(ctxExpiresAt, claims.ExpiresAt.Time)
	}
}

// Required rejects requests without a valid session.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// Optional attaches the session when one is present and valid.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := a.parse(c); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// RequireSuperuser checks both the token claim and the current user row.
func (a *Authenticator) RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if !claims.Superuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superuser required"})
			return
		}
		if a.users != nil {
			ok, err := a.users.IsActiveSuperuser(c.Request.Context(), claims.UserID)
			if err != nil {
				a.log.Error("superuser lookup failed", zap.Error(err), zap.Int64("user_id", claims.UserID))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			if !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "superuser privileges revoked"})
				return
			}
		}
		setClaims(c, claims)
		c.Next()
	}
}

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c *gin.Context) int64 {
	v, _ := c.Get(ctxUserID)
	id, _ := v.(int64)
	return id
}

func IsSuperuser(c *gin.Context) bool {
	return c.GetBool(ctxSuperuser)
}

func SessionKey(c *gin.Context) string {
	return c.GetString(ctxSessionKey)
}

func SessionExpiry(c *gin.Context) time.Time {
	return c.GetTime(ctxExpiresAt)
}

// Issue signs a new session token. The jti doubles as the session key.
func Issue(secret string, userID int64, superuser bool, ttl time.Duration) (string, string, time.Time, error) {
	sessionKey := uuid.NewString()
	expires := time.Now().Add(ttl)
	claims := &Claims{
		UserID:    userID,
		Superuser: superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionKey,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, sessionKey, expires, nil
}
