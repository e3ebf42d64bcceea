package hosting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/db"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// SearchLimit caps search results.
const SearchLimit = 20

// Repository stores hosted projects in SQLite.
type Repository struct {
	db *db.DB
}

// NewRepository creates a repository over an opened database.
func NewRepository(d *db.DB) *Repository {
	return &Repository{db: d}
}

// Insert stores a new project.
func (r *Repository) Insert(ctx context.Context, p *types.HostedProject) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, html, css, js, library, project_name, tags, views, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Buffers.Markup, p.Buffers.Style, p.Buffers.Script, p.Buffers.Library,
		p.Name, tags, p.Views, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting project %s: %w", p.ID, err)
	}
	return nil
}

// Exists reports whether id is taken.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking project %s: %w", id, err)
	}
	return n > 0, nil
}

// Get loads a project. A missing id yields types.ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*types.HostedProject, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, html, css, js, library, project_name, tags, views, created_at, updated_at
		FROM projects WHERE id = ?`, id)

	var (
		p                types.HostedProject
		tags             string
		created, updated int64
	)
	err := row.Scan(&p.ID, &p.Buffers.Markup, &p.Buffers.Style, &p.Buffers.Script, &p.Buffers.Library,
		&p.Name, &tags, &p.Views, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", id, err)
	}
	p.Tags = decodeTags(tags)
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return &p, nil
}

// Update rewrites the mutable columns of p.
func (r *Repository) Update(ctx context.Context, p *types.HostedProject) error {
	tags, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET html = ?, css = ?, js = ?, library = ?, project_name = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		p.Buffers.Markup, p.Buffers.Style, p.Buffers.Script, p.Buffers.Library,
		p.Name, tags, p.UpdatedAt.UnixMilli(), p.ID)
	if err != nil {
		return fmt.Errorf("updating project %s: %w", p.ID, err)
	}
	return requireRow(res, p.ID)
}

// Delete removes a project.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return requireRow(res, id)
}

// IncrementViews bumps the view counter and returns the new value.
func (r *Repository) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE projects SET views = views + 1 WHERE id = ? RETURNING views`, id).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("counting view of %s: %w", id, err)
	}
	return views, nil
}

// Search returns the most recent projects whose name contains query and
// whose tags include tag. Empty filters match everything.
func (r *Repository) Search(ctx context.Context, query, tag string, limit int) ([]types.HostedListing, error) {
	if limit <= 0 || limit > SearchLimit {
		limit = SearchLimit
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT id, project_name, tags, views, created_at FROM projects WHERE 1=1`)
	if query != "" {
		sb.WriteString(` AND project_name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(query)+"%")
	}
	if tag != "" {
		quoted, err := sonic.MarshalString(strings.ToLower(tag))
		if err != nil {
			return nil, err
		}
		sb.WriteString(` AND tags LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(quoted)+"%")
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching projects: %w", err)
	}
	defer rows.Close()

	out := []types.HostedListing{}
	for rows.Next() {
		var (
			l       types.HostedListing
			tags    string
			created int64
		)
		if err := rows.Scan(&l.ID, &l.Name, &tags, &l.Views, &created); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		l.Tags = decodeTags(tags)
		l.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

// Totals returns the project count and the sum of views.
func (r *Repository) Totals(ctx context.Context) (projects, views int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(views), 0) FROM projects`).Scan(&projects, &views)
	if err != nil {
		return 0, 0, fmt.Errorf("reading totals: %w", err)
	}
	return projects, views, nil
}

// DeleteStale removes projects created before cutoff with fewer than
// minViews views.
func (r *Repository) DeleteStale(ctx context.Context, cutoff time.Time, minViews int) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE created_at < ? AND views < ?`, cutoff.UnixMilli(), minViews)
	if err != nil {
		return 0, fmt.Errorf("deleting stale projects: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func encodeTags(tags types.Tags) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	s, err := sonic.MarshalString([]string(tags))
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return s, nil
}

func decodeTags(s string) types.Tags {
	tags := types.Tags{}
	if s == "" {
		return tags
	}
	_ = sonic.UnmarshalString(s, &tags)
	return tags
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
