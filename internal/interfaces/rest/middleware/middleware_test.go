package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterKV struct {
	count int64
	err   error
}

func (kv *counterKV) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	return nil
}
func (kv *counterKV) Get(ctx context.Context, key string) (string, error)  { return "", nil }
func (kv *counterKV) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
func (kv *counterKV) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if kv.err != nil {
		return 0, 0, kv.err
	}
	kv.count++
	return kv.count, 90 * time.Second, nil
}
func (kv *counterKV) Ping(ctx context.Context) error { return nil }
func (kv *counterKV) Close() error                   { return nil }

func serve(h echo.HandlerFunc, m ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/", h, m...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRateLimit(t *testing.T) {
	kv := &counterKV{}
	limiter := RateLimit(&RateLimitOption{Store: kv, Name: "test", Window: time.Minute, Max: 2})

	rec := serve(ok, limiter)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "90", rec.Header().Get("X-RateLimit-Reset"))

	serve(ok, limiter)
	rec = serve(ok, limiter)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := RateLimit(&RateLimitOption{Store: &counterKV{err: errors.New("redis down")}, Window: time.Minute, Max: 1})
	assert.Equal(t, http.StatusOK, serve(ok, limiter).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	kv := &counterKV{}
	limiter := RateLimit(&RateLimitOption{Store: kv, Window: time.Minute, Max: 0})
	serve(ok, limiter)
	assert.Zero(t, kv.count)
}

func TestErrorHandling(t *testing.T) {
	var handled error
	m := ErrorHandling(&ErrorHandlingOption{
		Handler: func(c echo.Context, err error) {
			handled = err
			c.NoContent(http.StatusInternalServerError)
		},
	})

	rec := serve(func(c echo.Context) error { return errors.New("boom") }, m)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.EqualError(t, handled, "boom")

	rec = serve(func(c echo.Context) error { panic("not an error") }, m)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.EqualError(t, handled, "panic: not an error")

	rec = serve(func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") }, m)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestAbortRequest(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	m := AbortRequest(&AbortRequestOption{Timeout: time.Second})
	serve(func(c echo.Context) error {
		deadline, hasDeadline = c.Request().Context().Deadline()
		return nil
	}, m)
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestVerifyToken(t *testing.T) {
	ju := auth.NewJWTUtil("HS256", "s3cret", "tk", time.Hour)
	tokenStr, err := ju.IssueToken("u1", "reader", "")
	require.NoError(t, err)

	revoked := map[string]bool{}
	m := VerifyToken(ju, &ValidateTokenOption{
		InBlackList: func(ctx context.Context, tokenID string) (bool, error) { return revoked[tokenID], nil },
	})
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, ju.GetContextToken(c).UserID()) }, m)
	call := func(cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := call(&http.Cookie{Name: "tk", Value: tokenStr})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(&http.Cookie{Name: "tk", Value: "garbage"}).Code)

	claims, err := ju.Validate(tokenStr)
	require.NoError(t, err)
	revoked[claims.Id] = true
	assert.Equal(t, http.StatusUnauthorized, call(&http.Cookie{Name: "tk", Value: tokenStr}).Code)
}

func TestRefreshToken(t *testing.T) {
	ju := auth.NewJWTUtil("HS256", "s3cret", "tk", 2*time.Minute)
	tokenStr, err := ju.IssueToken("u1", "reader", "")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/", ok, VerifyToken(ju), RefreshToken(ju, &RefreshTokenOption{Threshold: 5 * time.Minute}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "tk", Value: tokenStr})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1, "token close to expiry is reissued")
	assert.Equal(t, "tk", cookies[0].Name)
}
