package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes. Project and group path
// parameters are URL-encoded paths with namespace, the same convention
// the GitLab API itself uses.
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()

	// URL-encoded project paths (acme%2Fapp) must not be split into
	// extra route segments before parameter capture.
	router.UseRawPath = true

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(RequestID())
	router.Use(gin.Logger())

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		projects := v1.Group("/projects/:project")
		{
			projects.GET("/report", handler.GetProjectReport)
			projects.GET("/developers/:username/report", handler.GetDeveloperReport)
		}

		groups := v1.Group("/groups/:group")
		{
			groups.GET("/report", handler.GetGroupReport)
		}
	}

	return router
}
