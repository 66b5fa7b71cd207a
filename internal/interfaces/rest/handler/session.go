package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/auth"
	"github.com/pot-code/speedread/internal/infrastructure/validate"
	"github.com/pot-code/speedread/internal/reading"
	"github.com/pot-code/speedread/internal/session"
)

// SessionHandler reading session endpoints, all scoped to the signed in user
type SessionHandler struct {
	SessionUseCase session.SessionUseCase
	JWTUtil        *auth.JWTUtil
	Validator      validate.Validator
}

// NewSessionHandler .
func NewSessionHandler(
	SessionUseCase session.SessionUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *SessionHandler {
	return &SessionHandler{SessionUseCase, JWTUtil, Validator}
}

// non positive total words and bad timing are left to the engine so that they fail with 422
type submitSessionRequest struct {
	ActivityID   string              `json:"activity_id" validate:"required,max=64"`
	StartTime    time.Time           `json:"start_time" validate:"required"`
	EndTime      time.Time           `json:"end_time" validate:"required"`
	WordEvents   []reading.WordEvent `json:"word_events" validate:"required,min=1,dive"`
	Answers      []reading.Answer    `json:"answers" validate:"dive"`
	TotalWords   int                 `json:"total_words" validate:"max=10000000"`
	Settings     reading.Settings    `json:"settings"`
	Notes        string              `json:"notes" validate:"max=2000"`
	DeviceInfo   json.RawMessage     `json:"device_info"`
	TrackingData json.RawMessage     `json:"tracking_data"`
}

func (r *submitSessionRequest) session() *reading.Session {
	return &reading.Session{
		ActivityID:   r.ActivityID,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		WordEvents:   r.WordEvents,
		Answers:      r.Answers,
		TotalWords:   r.TotalWords,
		Settings:     r.Settings,
		Notes:        r.Notes,
		DeviceInfo:   r.DeviceInfo,
		TrackingData: r.TrackingData,
	}
}

// HandleSubmit runs a finished session through the engine, 201 with an
// optional warning when stored
func (sh *SessionHandler) HandleSubmit(c echo.Context) error {
	claims := sh.JWTUtil.GetContextToken(c)
	post := new(submitSessionRequest)
	if err := c.Bind(post); err != nil {
		return replyBindError(c, err)
	}
	if errs := sh.Validator.Struct(post); errs != nil {
		return replyValidation(c, "Failed to validate fields", errs)
	}

	result, err := sh.SessionUseCase.Submit(c.Request().Context(), claims.UserID(), post.session())
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// HandleList own sessions newest first, ?page=1&page_size=20
func (sh *SessionHandler) HandleList(c echo.Context) error {
	claims := sh.JWTUtil.GetContextToken(c)
	page, errs := intQuery(c, "page", 1)
	pageSize, sizeErrs := intQuery(c, "page_size", session.DefaultPageSize)
	if errs = append(errs, sizeErrs...); len(errs) > 0 {
		return replyValidation(c, "Failed to validate params", errs)
	}

	records, err := sh.SessionUseCase.List(c.Request().Context(), claims.UserID(), page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// HandleGet .
func (sh *SessionHandler) HandleGet(c echo.Context) error {
	claims := sh.JWTUtil.GetContextToken(c)
	record, err := sh.SessionUseCase.Get(c.Request().Context(), claims.UserID(), c.Param("id"))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// intQuery optional positive integer query param
func intQuery(c echo.Context, name string, fallback int) (int, []*validate.FieldError) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, []*validate.FieldError{validate.NewFieldError(name, name+" must be a positive integer")}
	}
	return v, nil
}
