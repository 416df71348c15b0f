package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func serve(mw echo.MiddlewareFunc, userID int64) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID > 0 {
		SetUserID(c, userID)
	}

	h := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	_ = h(c)
	return rec
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	rec := serve(RateLimitMiddleware(RateLimitConfig{RPS: 0}), 1)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(RateLimitMiddleware(RateLimitConfig{RPS: 1}), 0)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	rds := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rds.Close()

	rec := serve(RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 1}), 1)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserIDFromCtx(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := UserIDFromCtx(c)
	assert.False(t, ok)

	SetUserID(c, 42)
	id, ok := UserIDFromCtx(c)
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)
}
