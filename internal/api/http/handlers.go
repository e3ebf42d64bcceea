package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/hosting"
	"github.com/GriffinCanCode/livepen/internal/domain/library"
	"github.com/GriffinCanCode/livepen/internal/domain/share"
	"github.com/GriffinCanCode/livepen/internal/domain/theme"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/backup"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Runner executes composed documents.
type Runner interface {
	Run(ctx context.Context, document string, sink sandbox.Sink) (*sandbox.Result, error)
}

// Options holds the collaborators of the REST handlers. Hosting and Backups
// may be nil, in which case their routes are not registered.
type Options struct {
	Hosting    *hosting.Service
	Backups    *backup.Manager
	Runner     Runner
	Codec      *share.Codec
	Libraries  *library.Catalog
	Themes     *theme.Catalog
	PublicURL  string
	RunTimeout time.Duration
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	hosting    *hosting.Service
	backups    *backup.Manager
	runner     Runner
	codec      *share.Codec
	libraries  *library.Catalog
	themes     *theme.Catalog
	publicURL  string
	runTimeout time.Duration
	metrics    *monitoring.Metrics
	tracker    *HandlerMetrics
	logger     *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Codec == nil {
		opts.Codec = share.NewCodec(share.DefaultMaxBytes, opts.Metrics)
	}
	if opts.Libraries == nil {
		opts.Libraries = library.Builtin()
	}
	if opts.Themes == nil {
		opts.Themes = theme.Builtin()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = sandbox.DefaultConfig().Timeout
	}
	return &Handlers{
		hosting:    opts.Hosting,
		backups:    opts.Backups,
		runner:     opts.Runner,
		codec:      opts.Codec,
		libraries:  opts.Libraries,
		themes:     opts.Themes,
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		runTimeout: opts.RunTimeout,
		metrics:    opts.Metrics,
		tracker:    NewHandlerMetrics(opts.Metrics),
		logger:     opts.Logger,
	}
}

// RouteGuards are per-route middleware supplied by the server.
type RouteGuards struct {
	Create gin.HandlerFunc
	Update gin.HandlerFunc
	Admin  gin.HandlerFunc
}

func chain(guard gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{guard, h}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter, guards RouteGuards) {
	r.GET("/health", h.Health)

	api := r.Group("/api")

	// Playground
	api.POST("/compose", h.Compose)
	api.POST("/run", h.Run)
	api.POST("/share", h.ShareEncode)
	api.POST("/share/decode", h.ShareDecode)
	api.POST("/import", h.ImportZIP)
	api.POST("/export", h.ExportZIP)
	api.GET("/libraries", h.Libraries)
	api.GET("/themes", h.Themes)

	// Hosting
	if h.hosting != nil {
		api.POST("/create", chain(guards.Create, h.CreateProject)...)
		api.GET("/project/:id", h.GetProject)
		api.PUT("/project/:id", chain(guards.Update, h.UpdateProject)...)
		api.DELETE("/project/:id", h.DeleteProject)
		api.GET("/search", h.Search)
		api.GET("/export/:id", h.ExportProject)
		api.GET("/stats", h.Stats)
		r.GET("/:id", h.Render)
	}
	if h.backups != nil {
		api.GET("/admin/backup", chain(guards.Admin, h.Backup)...)
	}
}

// Health returns service health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": config.Version,
		"uptime":  int64(h.metrics.Uptime() / time.Second),
		"hosting": h.hosting != nil,
		"sandbox": h.runner != nil,
	})
}

// respondError maps domain errors onto the uniform error body.
func (h *Handlers) respondError(c *gin.Context, err error, fallback string) {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: ve.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "Project not found"})
	case errors.Is(err, sandbox.ErrPoolClosed):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "Sandbox is shutting down"})
	default:
		h.logger.Error(fallback,
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: fallback})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: message})
}
