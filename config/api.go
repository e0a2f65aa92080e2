package config

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ConfigAPIServer exposes the effective configuration over HTTP.
type ConfigAPIServer struct {
	cfg *Config
}

// NewConfigAPIServer creates a new config API server.
func NewConfigAPIServer(cfg *Config) *ConfigAPIServer {
	return &ConfigAPIServer{
		cfg: cfg,
	}
}

// SetupRouter configures a Gin router with the config API routes.
func (c *ConfigAPIServer) SetupRouter() *gin.Engine {
	router := gin.New()
	c.Mount(router.Group("/api/v1"))
	return router
}

// Mount registers the config routes on the given group.
func (c *ConfigAPIServer) Mount(group *gin.RouterGroup) {
	group.GET("/config", c.HandleGetConfig)
}

// HandleGetConfig handles GET /api/v1/config.
func (c *ConfigAPIServer) HandleGetConfig(ctx *gin.Context) {
	// History DSNs may carry credentials for other drivers; never echo them.
	redacted := *c.cfg
	if redacted.History.DSN != "" {
		redacted.History.DSN = "(set)"
	}

	ctx.JSON(http.StatusOK, redacted)
}
