package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures routes, middleware, and error handlers.
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)

	// Read-only pricing and gating
	v1.GET("/quote/deposit", h.QuoteDeposit)
	v1.GET("/quote/redeem", h.QuoteRedeem)
	v1.GET("/quote/compare", h.CompareQuote)
	v1.GET("/availability", h.Availability)
	v1.GET("/accounts/:address/cooldown", h.Cooldown)
	v1.GET("/accounts/:address/balance", h.Balance)
	v1.GET("/conversions/recent", h.RecentConversions)

	// Mutating operations, rate-limited per instance
	convert := v1.Group("/convert")
	convert.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(2), // 2 operations per second
		Burst:     5,
		ExpiresIn: 2 * time.Minute,
	})))
	convert.POST("/deposit", h.Deposit)
	convert.POST("/redeem", h.Redeem)
	convert.POST("/approve", h.Approve)

	// AI analytics, tightly rate-limited
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,
		ExpiresIn: 2 * time.Minute,
	})))
	aigroup.POST("/ask", h.AIAsk)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
