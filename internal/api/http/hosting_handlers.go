package http

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/hosting"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// CreateProject stores a new hosted project
func (h *Handlers) CreateProject(c *gin.Context) {
	var req types.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	done := h.tracker.TrackHostingOperation("create")
	p, err := h.hosting.Create(c.Request.Context(), req)
	done(err)
	if err != nil {
		h.respondError(c, err, "Failed to save project")
		return
	}

	c.JSON(http.StatusOK, types.CreateResponse{
		Success: true,
		ID:      p.ID,
		URL:     h.hosting.URL(p.ID),
	})
}

// GetProject returns project metadata without sources
func (h *Handlers) GetProject(c *gin.Context) {
	done := h.tracker.TrackHostingOperation("get")
	md, err := h.hosting.Metadata(c.Request.Context(), c.Param("id"))
	done(err)
	if err != nil {
		h.respondError(c, err, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, types.ProjectResponse{Success: true, Project: md})
}

// UpdateProject applies a partial update
func (h *Handlers) UpdateProject(c *gin.Context) {
	var req types.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	done := h.tracker.TrackHostingOperation("update")
	_, err := h.hosting.Update(c.Request.Context(), c.Param("id"), req)
	done(err)
	if err != nil {
		h.respondError(c, err, "Failed to update project")
		return
	}
	c.JSON(http.StatusOK, types.MessageResponse{Success: true, Message: "Project updated"})
}

// DeleteProject removes a project
func (h *Handlers) DeleteProject(c *gin.Context) {
	done := h.tracker.TrackHostingOperation("delete")
	err := h.hosting.Delete(c.Request.Context(), c.Param("id"))
	done(err)
	if err != nil {
		h.respondError(c, err, "Failed to delete project")
		return
	}
	c.JSON(http.StatusOK, types.MessageResponse{Success: true, Message: "Project deleted"})
}

// Search lists recent projects by name and tag
func (h *Handlers) Search(c *gin.Context) {
	done := h.tracker.TrackHostingOperation("search")
	projects, err := h.hosting.Search(c.Request.Context(), c.Query("query"), c.Query("tag"))
	done(err)
	if err != nil {
		h.respondError(c, err, "Search failed")
		return
	}
	if projects == nil {
		projects = []types.HostedListing{}
	}
	c.JSON(http.StatusOK, types.SearchResponse{Success: true, Projects: projects})
}

// ExportProject streams the project archive as a download
func (h *Handlers) ExportProject(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	done := h.tracker.TrackHostingOperation("export")
	md, err := h.hosting.Metadata(ctx, id)
	if err != nil {
		done(err)
		h.respondError(c, err, "Export failed")
		return
	}
	var buf bytes.Buffer
	err = h.hosting.Export(ctx, id, &buf)
	done(err)
	if err != nil {
		h.respondError(c, err, "Export failed")
		return
	}

	attachment(c, packaging.FileName(md.Name))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
	h.logger.Info("project exported", zap.String("id", id), zap.Int("bytes", buf.Len()))
}

// Stats reports totals, uptime and version
func (h *Handlers) Stats(c *gin.Context) {
	done := h.tracker.TrackHostingOperation("stats")
	stats, err := h.hosting.Stats(c.Request.Context())
	done(err)
	if err != nil {
		h.respondError(c, err, "Failed to load stats")
		return
	}
	c.JSON(http.StatusOK, types.StatsResponse{Success: true, Stats: stats})
}

// Backup takes a database snapshot on demand
func (h *Handlers) Backup(c *gin.Context) {
	done := h.tracker.TrackAdminOperation("backup")
	snap, err := h.backups.Run(c.Request.Context())
	done(err)
	if err != nil {
		h.respondError(c, err, "Backup failed")
		return
	}
	h.logger.Info("backup created on demand", zap.String("path", snap.Path))
	c.JSON(http.StatusOK, types.BackupResponse{Success: true, Backup: filepath.Base(snap.Path)})
}

// Render serves the standalone page of a project and counts the view.
// Ids that cannot exist get a bare 404 so probes never reach the database.
func (h *Handlers) Render(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsHostedID(id) {
		c.String(http.StatusNotFound, "Not found")
		return
	}

	done := h.tracker.TrackHostingOperation("render")
	page, err := h.hosting.Render(c.Request.Context(), id)
	done(err)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	case hosting.IsNotFound(err):
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(compositor.NotFoundPage(id)))
	default:
		h.logger.Error("render failed", zap.String("id", id), zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
	}
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}
