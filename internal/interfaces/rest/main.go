package rest

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	infra "github.com/pot-code/speedread/internal/infrastructure"
	"github.com/pot-code/speedread/internal/infrastructure/auth"
	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"github.com/pot-code/speedread/internal/infrastructure/notify"
	"github.com/pot-code/speedread/internal/infrastructure/validate"
	"github.com/pot-code/speedread/internal/interfaces/rest/handler"
	"github.com/pot-code/speedread/internal/interfaces/rest/middleware"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/session"
	"github.com/pot-code/speedread/internal/user"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout time given to in-flight requests on shutdown
const ShutdownTimeout = 10 * time.Second

// ServerOption everything the http transport is wired with
type ServerOption struct {
	Config          *infra.AppConfig
	Store           handler.Pinger
	KV              driver.KeyValueDB
	UserUseCase     user.UserUseCase
	SessionUseCase  session.SessionUseCase
	ProgressUseCase progress.ProgressUseCase
	Hub             *notify.Hub
	Logger          *zap.Logger
}

// NewServer create the http transport
func NewServer(option *ServerOption) *echo.Echo {
	var (
		cfg       = option.Config
		logger    = option.Logger
		app       = echo.New()
		validator = validate.NewValidator("en")
		blacklist = auth.NewTokenBlacklist(option.KV)
		jwtUtil   = auth.NewJWTUtil(cfg.Security.JWTMethod,
			cfg.Security.JWTSecret,
			cfg.Security.TokenName,
			cfg.SessionTimeout)
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList:  blacklist.IsRevoked,
			Unauthorized: replyStatus(http.StatusUnauthorized, "unauthorized", "Missing or invalid token"),
		})
		refreshMiddleware = middleware.RefreshToken(jwtUtil, &middleware.RefreshTokenOption{
			Threshold: cfg.SessionRefresh,
		})
		apiLimiter = middleware.RateLimit(&middleware.RateLimitOption{
			Store:    option.KV,
			Name:     "api",
			Window:   cfg.RateLimit.Window,
			Max:      cfg.RateLimit.Max,
			Exceeded: replyStatus(http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later"),
		})
		authLimiter = middleware.RateLimit(&middleware.RateLimitOption{
			Store:    option.KV,
			Name:     "auth",
			Window:   cfg.RateLimit.Window,
			Max:      cfg.RateLimit.AuthMax,
			Exceeded: replyStatus(http.StatusTooManyRequests, "rate_limited", "Too many authentication attempts, please try again later"),
		})
	)
	jwtUtil.Issuer = cfg.AppID
	jwtUtil.Secure = cfg.Env == infra.EnvProduction
	app.HideBanner = true
	app.HidePort = true

	StatusHandler := handler.NewStatusHandler(cfg.AppID, cfg.Version, cfg.Env, map[string]handler.Pinger{
		"store": option.Store,
		"kv":    option.KV,
	})
	app.GET("/healthz", StatusHandler.HandleLiveness)
	if cfg.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}

	app.Use(echo_middleware.RequestID())
	app.Use(middleware.SetTraceLogger(logger))
	app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
		Skipper: func(e echo.Context) bool {
			return strings.HasPrefix(e.Request().RequestURI, "/healthz")
		},
	}))
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := handler.TraceID(c)
				c.JSON(http.StatusInternalServerError,
					handler.NewRESTStandardError(http.StatusInternalServerError, err.Error()).SetTraceID(traceID),
				)
				logging.ExtractLoggerFromContext(c.Request().Context()).Error(err.Error(), zap.String("url.path", c.Request().RequestURI))
			},
			HTTPHandler: func(c echo.Context, err *echo.HTTPError) {
				c.JSON(err.Code,
					handler.NewRESTStandardError(err.Code, fmt.Sprint(err.Message)).SetTraceID(handler.TraceID(c)),
				)
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if cfg.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORSWithConfig(echo_middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.Origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowCredentials: true,
	}))
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: cfg.RequestTimeout,
	}))

	var (
		UserHandler     = handler.NewUserHandler(jwtUtil, blacklist, option.UserUseCase, validator)
		SessionHandler  = handler.NewSessionHandler(option.SessionUseCase, jwtUtil, validator)
		ProgressHandler = handler.NewProgressHandler(option.ProgressUseCase, jwtUtil, validator)
		NotifyHandler   = handler.NewNotifyHandler(option.Hub, jwtUtil)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{apiLimiter},
			groups: []*apiGroup{
				{
					prefix: "/user",
					routes: []*route{
						{"POST", "/login", UserHandler.HandleSignIn, []echo.MiddlewareFunc{authLimiter}},
						{"PUT", "/sign-out", UserHandler.HandleSignOut, nil},
						{"POST", "/sign-up", UserHandler.HandleSignUp, []echo.MiddlewareFunc{authLimiter}},
						{"GET", "/exists", UserHandler.HandleUserExists, nil},
					},
				},
				{
					prefix:      "/sessions",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
					routes: []*route{
						{"POST", "", SessionHandler.HandleSubmit, nil},
						{"GET", "", SessionHandler.HandleList, nil},
						{"GET", "/:id", SessionHandler.HandleGet, nil},
					},
				},
				{
					prefix:      "/progress",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
					routes: []*route{
						{"GET", "", ProgressHandler.HandleGetProgress, nil},
						{"PUT", "/goals", ProgressHandler.HandleSetGoals, nil},
						{"GET", "/leaderboard", ProgressHandler.HandleLeaderboard, nil},
						{"GET", "/achievements", ProgressHandler.HandleCatalog, nil},
					},
				},
				{
					prefix:      "/ws",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"GET", "/achievements", NotifyHandler.HandleAchievements, nil},
					},
				},
				{
					prefix: "/status",
					routes: []*route{
						{"GET", "", StatusHandler.HandleStatus, nil},
					},
				},
			},
		})

	printRoutes(app, logger)
	return app
}

// Serve runs app on addr until ctx is done, then drains in-flight requests
func Serve(ctx context.Context, app *echo.Echo, addr string, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started", zap.String("server.address", addr))
		if err := app.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func replyStatus(code int, kind, detail string) func(c echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(code, handler.NewRESTStandardError(code, detail).SetType(kind).SetTraceID(handler.TraceID(c)))
	}
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Debug("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
