package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// RateLimitOption fixed window limiter settings
type RateLimitOption struct {
	Skipper middleware.Skipper
	Store   driver.KeyValueDB
	// Name separates counters of different limiters
	Name   string
	Window time.Duration
	Max    int
	// KeyFunc identifies the client, defaults to its IP
	KeyFunc func(c echo.Context) string
	// Exceeded replies rejected requests
	Exceeded func(c echo.Context) error
}

// RateLimit allows Max requests per client within Window. Store failures let
// the request through.
func RateLimit(option *RateLimitOption) echo.MiddlewareFunc {
	skipper := option.Skipper
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	keyFunc := option.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c echo.Context) string { return c.RealIP() }
	}
	exceeded := option.Exceeded
	if exceeded == nil {
		exceeded = func(c echo.Context) error { return c.NoContent(http.StatusTooManyRequests) }
	}
	limit := strconv.Itoa(option.Max)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if option.Max <= 0 || skipper(c) {
				return next(c)
			}
			ctx := c.Request().Context()
			key := "ratelimit:" + option.Name + ":" + keyFunc(c)
			count, ttl, err := option.Store.IncrWindow(ctx, key, option.Window)
			if err != nil {
				logging.ExtractLoggerFromContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
				return next(c)
			}

			reset := strconv.Itoa(int(math.Ceil(ttl.Seconds())))
			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", limit)
			header.Set("X-RateLimit-Reset", reset)
			if count > int64(option.Max) {
				header.Set("X-RateLimit-Remaining", "0")
				header.Set("Retry-After", reset)
				return exceeded(c)
			}
			header.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(option.Max)-count, 10))
			return next(c)
		}
	}
}
