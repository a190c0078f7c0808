package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// Filter narrows project listings. Zero value matches everything.
type Filter struct {
	Name string
}

// ProjectStore is the project registry.
type ProjectStore struct {
	db *DB
}

const projectColumns = "id, name, source_repo, create_time, last_build_date, build_duration, build_count, build_status"

// Find lists projects matching filter, newest first.
func (s *ProjectStore) Find(ctx context.Context, filter Filter) ([]project.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	query := "SELECT " + projectColumns + " FROM projects"
	var args []any
	if filter.Name != "" {
		query += " WHERE name = ?"
		args = append(args, filter.Name)
	}
	query += " ORDER BY create_time DESC, rowid DESC"

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("query projects", err)
	}
	defer rows.Close()

	projects := []project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, persistenceErr("scan project", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate projects", err)
	}
	return projects, nil
}

// FindByID loads one project. Returns ErrNotFound when the id is unknown.
func (s *ProjectStore) FindByID(ctx context.Context, id string) (*project.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	row := s.db.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithContext("id", id)
	}
	if err != nil {
		return nil, persistenceErr("load project", err)
	}
	return p, nil
}

// Insert registers a new project. ID, CreateTime, BuildCount and BuildStatus
// are assigned here; the caller provides Name and SourceRepo.
func (s *ProjectStore) Insert(ctx context.Context, p *project.Project) error {
	if err := p.Validate(); err != nil {
		return errors.ValidationError("invalid project").WithCause(err).Build()
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p.ID = uuid.NewString()
	p.CreateTime = s.db.now().UTC()
	p.LastBuildDate = nil
	p.BuildDuration = 0
	p.BuildCount = 0
	p.BuildStatus = project.StatusPending

	_, err := s.db.db.ExecContext(ctx,
		"INSERT INTO projects ("+projectColumns+") VALUES (?, ?, ?, ?, NULL, 0, 0, ?)",
		p.ID, p.Name, p.SourceRepo, toMillis(p.CreateTime), int(p.BuildStatus),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists.WithContext("name", p.Name)
		}
		return persistenceErr("insert project", err)
	}
	return nil
}

// Save writes every mutable field of an existing project.
func (s *ProjectStore) Save(ctx context.Context, p *project.Project) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var lastBuild any
	if p.LastBuildDate != nil {
		lastBuild = toMillis(*p.LastBuildDate)
	}
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, source_repo = ?, last_build_date = ?, build_duration = ?,
		build_count = ?, build_status = ? WHERE id = ?`,
		p.Name, p.SourceRepo, lastBuild, p.BuildDuration, int64(p.BuildCount), int(p.BuildStatus), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists.WithContext("name", p.Name)
		}
		return persistenceErr("save project", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("save project", err)
	}
	if n == 0 {
		return ErrNotFound.WithContext("id", p.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*project.Project, error) {
	var (
		p         project.Project
		created   int64
		lastBuild sql.NullInt64
		status    int
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SourceRepo, &created, &lastBuild, &p.BuildDuration, &p.BuildCount, &status); err != nil {
		return nil, err
	}
	p.CreateTime = fromMillis(created)
	if lastBuild.Valid {
		t := fromMillis(lastBuild.Int64)
		p.LastBuildDate = &t
	}
	p.BuildStatus = project.Status(status)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
