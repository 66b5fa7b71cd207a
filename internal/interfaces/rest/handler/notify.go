package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/auth"
	"github.com/pot-code/speedread/internal/infrastructure/notify"
)

// NotifyHandler .
type NotifyHandler struct {
	Hub     *notify.Hub
	JWTUtil *auth.JWTUtil
}

// NewNotifyHandler .
func NewNotifyHandler(Hub *notify.Hub, JWTUtil *auth.JWTUtil) *NotifyHandler {
	return &NotifyHandler{Hub, JWTUtil}
}

// HandleAchievements upgrades to a websocket receiving the user's unlocked achievements
func (nh *NotifyHandler) HandleAchievements(c echo.Context) error {
	claims := nh.JWTUtil.GetContextToken(c)
	return nh.Hub.Serve(c, claims.UserID())
}
