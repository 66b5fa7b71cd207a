package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestCreateEndpoint(t *testing.T) {
	app := echo.New()
	var trail []string
	mark := func(name string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				trail = append(trail, name)
				return next(c)
			}
		}
	}
	createEndpoint(app, &endpoint{
		apiVersion:  "/api/v2",
		middlewares: []echo.MiddlewareFunc{mark("endpoint")},
		groups: []*apiGroup{{
			prefix:      "/things",
			middlewares: []echo.MiddlewareFunc{mark("group")},
			routes: []*route{
				{"PATCH", "/:id", func(c echo.Context) error { return c.String(http.StatusOK, c.Param("id")) }, []echo.MiddlewareFunc{mark("route")}},
			},
		}},
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v2/things/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())
	assert.Equal(t, []string{"endpoint", "group", "route"}, trail)

	assert.Panics(t, func() {
		createEndpoint(app, &endpoint{apiVersion: "api", groups: []*apiGroup{{routes: []*route{{"BREW", "/", nil, nil}}}}})
	})
}
