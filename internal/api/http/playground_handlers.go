package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/console"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/domain/share"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

// RunResponse is returned by POST /api/run.
type RunResponse struct {
	Success  bool            `json:"success"`
	TimedOut bool            `json:"timedOut"`
	Console  []console.Line  `json:"console"`
	Result   *sandbox.Result `json:"result"`
}

// ImportResponse is returned by POST /api/import.
type ImportResponse struct {
	Success     bool              `json:"success"`
	ProjectName string            `json:"projectName"`
	Buffers     types.BufferSet   `json:"buffers"`
	Files       map[string]string `json:"files"`
}

// prepare resolves catalog ids to URLs and enforces the size limits. Empty
// buffer sets are fine here; only hosting rejects them.
func (h *Handlers) prepare(b types.BufferSet) (types.BufferSet, error) {
	b.Library = h.libraries.Resolve(b.Library)
	if b.Size() > utils.MaxProjectSize {
		return b, types.NewValidationError("", fmt.Sprintf("project exceeds maximum size of %d bytes", utils.MaxProjectSize))
	}
	return b, utils.ValidateString(b.Library, "library", 0, utils.MaxLibraryURL, false)
}

// Compose returns the preview document for a buffer set. Clients that
// accept text/html get the document itself.
func (h *Handlers) Compose(c *gin.Context) {
	var req types.ComposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	b, err := h.prepare(req.BufferSet)
	if err != nil {
		h.respondError(c, err, "Compose failed")
		return
	}

	opts := compositor.Live
	if req.Instrument != nil {
		opts.Instrument = *req.Instrument
	}
	done := h.tracker.TrackPlaygroundOperation("compose")
	doc := compositor.Compose(b, opts)
	done(nil)

	etag := utils.BufferETag(b)
	c.Header("ETag", etag)
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
		return
	}
	c.JSON(http.StatusOK, types.ComposeResponse{Success: true, Document: doc, ETag: etag})
}

// Run composes the buffers and executes them in the headless sandbox.
// Script failures are console lines, not request failures.
func (h *Handlers) Run(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{Error: "Sandbox is disabled"})
		return
	}
	var req types.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	b, err := h.prepare(req.BufferSet)
	if err != nil {
		h.respondError(c, err, "Run failed")
		return
	}

	timeout := h.runTimeout
	if req.TimeoutMs > 0 {
		if d := time.Duration(req.TimeoutMs) * time.Millisecond; d < timeout {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	agg := console.New(nil, h.metrics)
	done := h.tracker.TrackPlaygroundOperation("run")
	res, err := h.runner.Run(ctx, compositor.Compose(b, compositor.Live), agg.OnEvent)
	timedOut := errors.Is(err, sandbox.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
	if timedOut {
		err = nil
	}
	done(err)
	if err != nil {
		h.respondError(c, err, "Run failed")
		return
	}
	c.JSON(http.StatusOK, RunResponse{Success: true, TimedOut: timedOut, Console: agg.Lines(), Result: res})
}

// ShareEncode returns a share token and link for the shareable fields.
func (h *Handlers) ShareEncode(c *gin.Context) {
	var req types.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	base := req.Base
	if base == "" {
		base = h.publicURL + "/"
	}
	shared := req.BufferSet.Shareable()

	done := h.tracker.TrackPlaygroundOperation("share_encode")
	var (
		resp types.ShareResponse
		err  error
	)
	if req.Legacy {
		resp.URL, err = share.LegacyURL(base, shared)
	} else if resp.Code, err = h.codec.Encode(shared); err == nil {
		resp.URL, err = h.codec.URL(base, shared)
	}
	done(err)
	if err != nil {
		h.respondError(c, types.NewValidationError("share", err.Error()), "Share failed")
		return
	}
	resp.Success = true
	c.JSON(http.StatusOK, resp)
}

// ShareDecode decodes a token, or applies a whole share link in either
// format onto an empty buffer set.
func (h *Handlers) ShareDecode(c *gin.Context) {
	var req types.ShareDecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	values := url.Values{}
	switch {
	case req.URL != "":
		u, err := url.Parse(req.URL)
		if err != nil {
			badRequest(c, "Invalid share link")
			return
		}
		values = u.Query()
	case req.Code != "":
		values.Set(share.ParamCode, req.Code)
	default:
		badRequest(c, "code or url is required")
		return
	}

	done := h.tracker.TrackPlaygroundOperation("share_decode")
	var b types.BufferSet
	format, err := h.codec.Apply(values, &b)
	done(err)
	if err != nil {
		h.respondError(c, err, "Decode failed")
		return
	}
	if format == share.FormatNone {
		badRequest(c, "Link carries no shared code")
		return
	}
	c.JSON(http.StatusOK, types.DecodeResponse{Success: true, Format: format.String(), Buffers: b})
}

// ImportZIP reads an uploaded archive. The archive may arrive as the
// multipart field "file" or as the raw request body.
func (h *Handlers) ImportZIP(c *gin.Context) {
	name := c.Query("name")
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			badRequest(c, "file is required")
			return
		}
		if name == "" {
			name = fh.Filename
		}
		f, ferr := fh.Open()
		if ferr != nil {
			h.respondError(c, ferr, "Import failed")
			return
		}
		defer f.Close()
		data, err = io.ReadAll(io.LimitReader(f, packaging.MaxArchiveBytes+1))
	} else {
		data, err = io.ReadAll(io.LimitReader(c.Request.Body, packaging.MaxArchiveBytes+1))
	}
	if err != nil {
		badRequest(c, "Could not read archive")
		return
	}

	done := h.tracker.TrackPlaygroundOperation("import")
	imported, err := packaging.Import(data, name)
	done(err)
	if err != nil {
		h.respondError(c, err, "Import failed")
		return
	}
	c.JSON(http.StatusOK, ImportResponse{
		Success:     true,
		ProjectName: imported.Name,
		Buffers:     imported.Buffers,
		Files:       imported.Files,
	})
}

// ExportZIP packages an unsaved buffer set as a download.
func (h *Handlers) ExportZIP(c *gin.Context) {
	var req types.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	b, err := h.prepare(req.BufferSet)
	if err != nil {
		h.respondError(c, err, "Export failed")
		return
	}
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		name = utils.DefaultProjectName
	}

	done := h.tracker.TrackPlaygroundOperation("export")
	var buf bytes.Buffer
	err = packaging.Export(&buf, packaging.Archive{Name: name, Buffers: b})
	done(err)
	if err != nil {
		h.respondError(c, err, "Export failed")
		return
	}
	attachment(c, packaging.FileName(name))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// Libraries lists the library catalog
func (h *Handlers) Libraries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "libraries": h.libraries.Libraries})
}

// Themes lists the theme catalog
func (h *Handlers) Themes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"default": h.themes.Default,
		"themes":  h.themes.Themes,
	})
}
