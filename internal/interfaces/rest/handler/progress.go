package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/auth"
	"github.com/pot-code/speedread/internal/infrastructure/validate"
	"github.com/pot-code/speedread/internal/progress"
)

// ProgressHandler .
type ProgressHandler struct {
	ProgressUseCase progress.ProgressUseCase
	JWTUtil         *auth.JWTUtil
	Validator       validate.Validator
}

// NewProgressHandler .
func NewProgressHandler(
	ProgressUseCase progress.ProgressUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{ProgressUseCase, JWTUtil, Validator}
}

type catalogItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Metric      progress.Metric `json:"metric,omitempty"`
	Threshold   float64         `json:"threshold,omitempty"`
	Unlocked    bool            `json:"unlocked"`
}

// HandleGetProgress own progress, a zero record before the first session
func (ph *ProgressHandler) HandleGetProgress(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	p, err := ph.ProgressUseCase.GetProgress(c.Request().Context(), claims.UserID())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// HandleSetGoals .
func (ph *ProgressHandler) HandleSetGoals(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	goals := new(progress.Goals)
	if err := c.Bind(goals); err != nil {
		return replyBindError(c, err)
	}
	if errs := ph.Validator.Struct(goals); errs != nil {
		return replyValidation(c, "Failed to validate fields", errs)
	}

	p, err := ph.ProgressUseCase.SetGoals(c.Request().Context(), claims.UserID(), *goals)
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// HandleLeaderboard ?limit=10
func (ph *ProgressHandler) HandleLeaderboard(c echo.Context) error {
	limit, errs := intQuery(c, "limit", progress.DefaultLeaderboardSize)
	if len(errs) > 0 {
		return replyValidation(c, "Failed to validate params", errs)
	}
	entries, err := ph.ProgressUseCase.Leaderboard(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// HandleCatalog every achievement, flagged when the user holds it
func (ph *ProgressHandler) HandleCatalog(c echo.Context) error {
	claims := ph.JWTUtil.GetContextToken(c)
	p, err := ph.ProgressUseCase.GetProgress(c.Request().Context(), claims.UserID())
	if err != nil {
		return err
	}

	catalog := ph.ProgressUseCase.Catalog()
	items := make([]*catalogItem, 0, len(catalog))
	for _, rule := range catalog {
		items = append(items, &catalogItem{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Metric:      rule.Metric,
			Threshold:   rule.Threshold,
			Unlocked:    p.HasAchievement(rule.ID),
		})
	}
	return c.JSON(http.StatusOK, items)
}
