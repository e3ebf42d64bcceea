package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORSConfig allows any origin. The editor page and hosted pens are
// usually served from different origins than the API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Accept",
			"Origin",
			"Cache-Control",
			"X-Requested-With",
			HeaderAdminToken,
		},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
}

// CORSConfigFor narrows the defaults to origins. Credentials are only
// allowed for an explicit origin list.
func CORSConfigFor(origins []string) CORSConfig {
	cfg := DefaultCORSConfig()
	if len(origins) > 0 && !(len(origins) == 1 && origins[0] == "*") {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, types.ErrorResponse{Success: false, Error: message})
}
