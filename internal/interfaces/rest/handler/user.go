package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/auth"
	"github.com/pot-code/speedread/internal/infrastructure/validate"
	"github.com/pot-code/speedread/internal/user"
)

// UserHandler user related operations
type UserHandler struct {
	JWTUtil     *auth.JWTUtil
	Blacklist   *auth.TokenBlacklist
	UserUseCase user.UserUseCase
	Validator   validate.Validator
}

// NewUserHandler create an user controller instance
func NewUserHandler(
	JWTUtil *auth.JWTUtil,
	Blacklist *auth.TokenBlacklist,
	UserUseCase user.UserUseCase,
	Validator validate.Validator,
) *UserHandler {
	return &UserHandler{
		JWTUtil:     JWTUtil,
		Blacklist:   Blacklist,
		UserUseCase: UserUseCase,
		Validator:   Validator,
	}
}

type signUpRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type signInRequest struct {
	Username string `json:"username" validate:"required"` // username or email
	Password string `json:"password" validate:"required"`
}

// HandleSignIn issues the token cookie
func (uh *UserHandler) HandleSignIn(c echo.Context) error {
	ju := uh.JWTUtil
	post := new(signInRequest)
	if err := c.Bind(post); err != nil {
		return replyBindError(c, err)
	}
	if errs := uh.Validator.Struct(post); errs != nil {
		return replyValidation(c, "Failed to validate fields", errs)
	}

	u, err := uh.UserUseCase.SignIn(c.Request().Context(), post.Username, post.Password)
	if err != nil {
		return replyError(c, err)
	}
	tokenStr, err := ju.IssueToken(u.ID, u.Username, u.Email)
	if err != nil {
		return err
	}
	ju.SetClientToken(c, tokenStr)
	return c.JSON(http.StatusOK, u)
}

// HandleSignUp .
func (uh *UserHandler) HandleSignUp(c echo.Context) error {
	post := new(signUpRequest)
	if err := c.Bind(post); err != nil {
		return replyBindError(c, err)
	}
	if errs := uh.Validator.Struct(post); errs != nil {
		return replyValidation(c, "Failed to validate fields", errs)
	}

	u, err := uh.UserUseCase.SignUp(c.Request().Context(), post.Username, post.Email, post.Password)
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// HandleSignOut blacklists the token for the rest of its lifetime
func (uh *UserHandler) HandleSignOut(c echo.Context) error {
	ju := uh.JWTUtil
	tokenStr, err := ju.ExtractToken(c)
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	claims, err := ju.Validate(tokenStr)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	if err := uh.Blacklist.Revoke(c.Request().Context(), claims); err != nil {
		return err
	}
	ju.ClearClientToken(c)
	return c.NoContent(http.StatusNoContent)
}

// HandleUserExists ...
func (uh *UserHandler) HandleUserExists(c echo.Context) error {
	username := c.QueryParam("username")
	email := c.QueryParam("email")

	if err := uh.Validator.AllEmpty([]string{"username", "email"}, username, email); err != nil {
		return replyValidation(c, "Failed to validate params", []*validate.FieldError{err})
	}

	existing, err := uh.UserUseCase.Exists(c.Request().Context(), username, email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, existing)
}
