package types

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Tags is a tag list. It decodes from a JSON array or from a single
// comma-separated string, which older clients send.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := sonic.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := sonic.Unmarshal(data, &s); err != nil {
		return err
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*t = out
	return nil
}

// HostedProject is a project stored by the hosting backend.
type HostedProject struct {
	ID        string    `json:"id"`
	Name      string    `json:"projectName"`
	Buffers   BufferSet `json:"buffers"`
	Tags      Tags      `json:"tags"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata returns the public view of p. Source text is never included.
func (p *HostedProject) Metadata() HostedMetadata {
	return HostedMetadata{
		ID:         p.ID,
		Name:       p.Name,
		Tags:       p.Tags,
		Views:      p.Views,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		HasHTML:    p.Buffers.Markup != "",
		HasCSS:     p.Buffers.Style != "",
		HasJS:      p.Buffers.Script != "",
		HasLibrary: p.Buffers.Library != "",
	}
}

// HostedMetadata is returned by GET /api/project/:id.
type HostedMetadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"projectName"`
	Tags       Tags      `json:"tags"`
	Views      int64     `json:"views"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	HasHTML    bool      `json:"hasHtml"`
	HasCSS     bool      `json:"hasCss"`
	HasJS      bool      `json:"hasJs"`
	HasLibrary bool      `json:"hasLibrary"`
}

// HostedListing is one search result.
type HostedListing struct {
	ID        string    `json:"id"`
	Name      string    `json:"projectName"`
	Tags      Tags      `json:"tags"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
}

// HostedStats is returned by GET /api/stats.
type HostedStats struct {
	TotalProjects int64  `json:"totalProjects"`
	TotalViews    int64  `json:"totalViews"`
	ServerUptime  int64  `json:"serverUptime"`
	Version       string `json:"version"`
}

// CreateResponse is returned by POST /api/create.
type CreateResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	URL     string `json:"url"`
}

// ProjectResponse is returned by GET /api/project/:id.
type ProjectResponse struct {
	Success bool            `json:"success"`
	Project *HostedMetadata `json:"project,omitempty"`
}

// SearchResponse is returned by GET /api/search.
type SearchResponse struct {
	Success  bool            `json:"success"`
	Projects []HostedListing `json:"projects"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	Success bool         `json:"success"`
	Stats   *HostedStats `json:"stats,omitempty"`
}

// MessageResponse acknowledges updates and deletes.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the uniform failure body of the REST API.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ComposeResponse carries a composed document.
type ComposeResponse struct {
	Success  bool   `json:"success"`
	Document string `json:"document"`
	ETag     string `json:"etag"`
}

// ShareResponse carries a share token and link.
type ShareResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	URL     string `json:"url"`
}

// DecodeResponse carries decoded share buffers.
type DecodeResponse struct {
	Success bool      `json:"success"`
	Format  string    `json:"format"`
	Buffers BufferSet `json:"buffers"`
}

// BackupResponse names a snapshot taken by GET /api/admin/backup.
type BackupResponse struct {
	Success bool   `json:"success"`
	Backup  string `json:"backup"`
}
