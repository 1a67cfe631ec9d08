package server

import (
	"github.com/OFFIS-RIT/followgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/followgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)
	apiRoutes.POST("/crawls", routes.CreateCrawlHandler)

	// Route kept from the original service
	e.GET("/twitter/:handle", routes.CrawlHandleHandler, middleware.AuthMiddleware)
}
