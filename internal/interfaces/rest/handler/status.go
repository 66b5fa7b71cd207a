package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Pinger a backing service that can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusHandler liveness and build information
type StatusHandler struct {
	AppID    string
	Version  string
	Env      string
	Started  time.Time
	Services map[string]Pinger
}

// NewStatusHandler .
func NewStatusHandler(AppID, Version, Env string, Services map[string]Pinger) *StatusHandler {
	return &StatusHandler{
		AppID:    AppID,
		Version:  Version,
		Env:      Env,
		Started:  time.Now(),
		Services: Services,
	}
}

type statusResponse struct {
	AppID         string  `json:"app_id"`
	Version       string  `json:"version"`
	Env           string  `json:"env"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HandleLiveness 200 when every service answers a ping
func (sh *StatusHandler) HandleLiveness(c echo.Context) error {
	ctx := c.Request().Context()
	for name, s := range sh.Services {
		if err := s.Ping(ctx); err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("liveness probe failed", zap.String("service.name", name), zap.Error(err))
			return c.NoContent(http.StatusServiceUnavailable)
		}
	}
	return c.NoContent(http.StatusOK)
}

// HandleStatus .
func (sh *StatusHandler) HandleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, &statusResponse{
		AppID:         sh.AppID,
		Version:       sh.Version,
		Env:           sh.Env,
		UptimeSeconds: time.Since(sh.Started).Round(time.Second).Seconds(),
	})
}
