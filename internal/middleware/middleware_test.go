package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, key string) (bool, error) {
	return r[key], nil
}

type superusers map[int64]bool

func (s superusers) IsActiveSuperuser(_ context.Context, id int64) (bool, error) {
	return s[id], nil
}

func newEngine(a *Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/me", a.Required(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c), "session": SessionKey(c)})
	})
	r.GET("/maybe", a.Optional(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c)})
	})
	r.GET("/admin", a.RequireSuperuser(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string, cookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		if cookie {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequired(t *testing.T) {
	revoked := revokedSet{}
	r := newEngine(NewAuthenticator(zap.NewNop(), testSecret, revoked, superusers{}))

	token, key, _, err := Issue(testSecret, 42, false, time.Hour)
	require.NoError(t, err)

	t.Run("Bearer", func(t *testing.T) {
		w := do(r, "/me", token, false)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"uid":42`)
		assert.Contains(t, w.Body.String(), key)
	})

	t.Run("Cookie", func(t *testing.T) {
		w := do(r, "/me", token, true)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Missing", func(t *testing.T) {
		w := do(r, "/me", "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, _, _, err := Issue("other", 42, false, time.Hour)
		require.NoError(t, err)
		w := do(r, "/me", other, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Expired", func(t *testing.T) {
		old, _, _, err := Issue(testSecret, 42, false, -time.Minute)
		require.NoError(t, err)
		w := do(r, "/me", old, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Revoked", func(t *testing.T) {
		revoked[key] = true
		defer delete(revoked, key)
		w := do(r, "/me", token, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOptional(t *testing.T) {
	r := newEngine(NewAuthenticator(zap.NewNop(), testSecret, nil, nil))

	w := do(r, "/maybe", "garbage", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":0`)
}

func TestRequireSuperuser(t *testing.T) {
	users := superusers{1: true, 2: false}
	r := newEngine(NewAuthenticator(zap.NewNop(), testSecret, nil, users))

	admin, _, _, _ := Issue(testSecret, 1, true, time.Hour)
	demoted, _, _, _ := Issue(testSecret, 2, true, time.Hour)
	client, _, _, _ := Issue(testSecret, 3, false, time.Hour)

	assert.Equal(t, http.StatusNoContent, do(r, "/admin", admin, false).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", demoted, false).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", client, false).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/admin", "", false).Code)
}

func TestHybridRateLimit(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	r := gin.New()
	r.Use(HybridRateLimit(client, 1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "/", "", false).Code)
	assert.Equal(t, http.StatusOK, do(r, "/", "", false).Code)
	w := do(r, "/", "", false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	// Redis gone: the in-memory bucket takes over with a fresh burst.
	s.Close()
	assert.Equal(t, http.StatusOK, do(r, "/", "", false).Code)
	assert.Equal(t, http.StatusOK, do(r, "/", "", false).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/", "", false).Code)
}
