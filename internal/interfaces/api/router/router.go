package router

import (
	"fmt"
	"net/http"

	"medreminder/internal/interfaces/api/handler"
	authMiddleware "medreminder/internal/interfaces/api/middleware"
	"medreminder/internal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config holds the dependencies for the router.
type Config struct {
	MedicationHandler *handler.MedicationHandler
	UserHandler       *handler.UserHandler
	LineHandler       *handler.LineHandler // Optional; /callback is only served when set
	Authenticator     authMiddleware.Authenticator
	MetricsHandler    http.Handler
	Logger            logger.Logger
}

// NewRouter creates and configures a new Echo router.
func NewRouter(cfg *Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	// Use custom logger that integrates with our logger interface
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			cfg.Logger.Info(fmt.Sprintf("REQUEST: method=%s, uri=%s, status=%d, latency=%s, req_id=%s",
				v.Method, v.URI, v.Status, v.Latency, v.RequestID,
			))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		MaxAge:       300,
	}))

	// Routes
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.MetricsHandler))
	}

	e.POST("/users", cfg.UserHandler.Register)

	requireAuth := authMiddleware.RequireAuth(cfg.Authenticator, cfg.Logger)
	e.GET("/users/me", cfg.UserHandler.Me, requireAuth)

	medications := e.Group("/medications", requireAuth)
	medications.POST("", cfg.MedicationHandler.Create)
	medications.GET("", cfg.MedicationHandler.List)
	medications.GET("/:id", cfg.MedicationHandler.Get)
	medications.PUT("/:id", cfg.MedicationHandler.Update)
	medications.DELETE("/:id", cfg.MedicationHandler.Delete)

	// LINE Webhook Endpoint
	// Note: LINE Platform requires POST for webhook
	if cfg.LineHandler != nil {
		e.POST("/callback", cfg.LineHandler.HandleWebhook)
	}

	cfg.Logger.Info("Router initialized with routes.")
	return e
}
