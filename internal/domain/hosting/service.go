package hosting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/packaging"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

const idAttempts = 5

// Retention controls the stale project sweep.
type Retention struct {
	MaxAge   time.Duration
	MinViews int
}

// Service implements the hosting operations.
type Service struct {
	repo      *Repository
	publicURL string
	retention Retention
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewService creates a Service. publicURL is the origin permalinks are
// served from.
func NewService(repo *Repository, publicURL string, retention Retention, metrics *monitoring.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		publicURL: strings.TrimRight(publicURL, "/"),
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newID:     id.NewHostedID,
	}
}

// RetentionFromConfig converts the retention settings.
func RetentionFromConfig(c config.RetentionConfig) Retention {
	return Retention{MaxAge: c.MaxAge, MinViews: c.MinViews}
}

// URL returns the permalink for id.
func (s *Service) URL(projectID string) string {
	return s.publicURL + "/" + projectID
}

// Create validates and stores a new project.
func (s *Service) Create(ctx context.Context, req types.CreateRequest) (*types.HostedProject, error) {
	p := &types.HostedProject{
		Name:    strings.TrimSpace(req.ProjectName),
		Buffers: req.Buffers(),
		Tags:    utils.NormalizeTags(req.Tags),
	}
	if p.Name == "" {
		p.Name = utils.DefaultProjectName
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	p.CreatedAt, p.UpdatedAt = now, now

	for attempt := 0; ; attempt++ {
		p.ID = s.newID()
		taken, err := s.repo.Exists(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		if attempt+1 >= idAttempts {
			return nil, fmt.Errorf("allocating project id: %d collisions", idAttempts)
		}
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.IncProjectsCreated()
	s.logger.Info("project created", zap.String("id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// Get loads a project including its sources.
func (s *Service) Get(ctx context.Context, projectID string) (*types.HostedProject, error) {
	if !utils.IsHostedID(projectID) {
		return nil, fmt.Errorf("project %s: %w", projectID, types.ErrNotFound)
	}
	return s.repo.Get(ctx, projectID)
}

// Metadata returns the public description of a project.
func (s *Service) Metadata(ctx context.Context, projectID string) (*types.HostedMetadata, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	md := p.Metadata()
	return &md, nil
}

// Update applies the non-nil fields of req and validates the result.
func (s *Service) Update(ctx context.Context, projectID string, req types.UpdateRequest) (*types.HostedProject, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if req.HTML != nil {
		p.Buffers.Markup = *req.HTML
	}
	if req.CSS != nil {
		p.Buffers.Style = *req.CSS
	}
	if req.JS != nil {
		p.Buffers.Script = *req.JS
	}
	if req.Library != nil {
		p.Buffers.Library = *req.Library
	}
	if req.ProjectName != nil {
		p.Name = strings.TrimSpace(*req.ProjectName)
		if p.Name == "" {
			p.Name = utils.DefaultProjectName
		}
	}
	if req.Tags != nil {
		p.Tags = utils.NormalizeTags(req.Tags)
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("project updated", zap.String("id", p.ID))
	return p, nil
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, projectID string) error {
	if err := s.repo.Delete(ctx, projectID); err != nil {
		return err
	}
	s.metrics.AddProjectsDeleted("user", 1)
	s.logger.Info("project deleted", zap.String("id", projectID))
	return nil
}

// Search lists up to SearchLimit recent projects matching query and tag.
func (s *Service) Search(ctx context.Context, query, tag string) ([]types.HostedListing, error) {
	query = strings.TrimSpace(query)
	tag = strings.TrimSpace(tag)
	if err := utils.ValidateString(query, "query", 0, utils.MaxQueryLength, false); err != nil {
		return nil, err
	}
	if err := utils.ValidateString(tag, "tag", 0, utils.MaxTagLength, false); err != nil {
		return nil, err
	}
	return s.repo.Search(ctx, query, tag, SearchLimit)
}

// Stats reports totals, uptime and version.
func (s *Service) Stats(ctx context.Context) (*types.HostedStats, error) {
	projects, views, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	return &types.HostedStats{
		TotalProjects: projects,
		TotalViews:    views,
		ServerUptime:  int64(s.metrics.Uptime() / time.Second),
		Version:       config.Version,
	}, nil
}

// Render counts a view and returns the standalone page for a project.
func (s *Service) Render(ctx context.Context, projectID string) (string, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	views, err := s.repo.IncrementViews(ctx, p.ID)
	if err != nil {
		return "", err
	}
	s.metrics.IncProjectViews()

	return compositor.Standalone(p.Buffers, compositor.StandaloneOptions{
		Title:       p.Name + " - LivePen",
		Description: "Created with LivePen",
		Footer: []string{
			"Created with LivePen",
			fmt.Sprintf("Views: %d", views),
			s.URL(p.ID),
		},
	}), nil
}

// Export writes the project archive to w.
func (s *Service) Export(ctx context.Context, projectID string, w io.Writer) error {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	return packaging.Export(w, packaging.Archive{
		ID:       p.ID,
		Name:     p.Name,
		URL:      s.URL(p.ID),
		Buffers:  p.Buffers,
		Modified: p.UpdatedAt,
	})
}

// Sweep deletes projects older than the retention age with fewer views
// than the retention minimum.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	if s.retention.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention.MaxAge)
	n, err := s.repo.DeleteStale(ctx, cutoff, s.retention.MinViews)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return 0, err
	}
	s.metrics.AddProjectsDeleted("retention", int(n))
	s.logger.Info("retention sweep finished", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

func validate(p *types.HostedProject) error {
	if err := utils.ValidateBuffers(p.Buffers); err != nil {
		return err
	}
	if err := utils.ValidateString(p.Name, "projectName", 0, utils.MaxProjectNameLength, false); err != nil {
		return err
	}
	return utils.ValidateTags(p.Tags)
}

// IsNotFound reports whether err means the project does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
