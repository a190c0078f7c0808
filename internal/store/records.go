package store

import (
	"context"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/forgebuild/internal/project"
)

// DefaultListLimit caps ListByProject when no limit is given.
const DefaultListLimit = 50

// RecordStore is the append-only build record log.
type RecordStore struct {
	db *DB
}

// Append stores a build record, assigning its ID and CreateTime.
func (s *RecordStore) Append(ctx context.Context, r *project.BuildRecord) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r.ID = uuid.NewString()
	r.CreateTime = s.db.now().UTC()

	_, err := s.db.db.ExecContext(ctx,
		`INSERT INTO build_records (id, project_id, record, status, error_line, operator, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Project, r.Record, int(r.Status), r.ErrorLine, r.Operator, toMillis(r.CreateTime),
	)
	if err != nil {
		return persistenceErr("append build record", err)
	}
	return nil
}

// ListByProject returns the newest records of a project first.
func (s *RecordStore) ListByProject(ctx context.Context, projectID string, limit int) ([]project.BuildRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rows, err := s.db.db.QueryContext(ctx,
		`SELECT id, project_id, record, status, error_line, operator, create_time
		FROM build_records WHERE project_id = ? ORDER BY create_time DESC, seq DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, persistenceErr("query build records", err)
	}
	defer rows.Close()

	records := []project.BuildRecord{}
	for rows.Next() {
		var (
			r       project.BuildRecord
			status  int
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Project, &r.Record, &status, &r.ErrorLine, &r.Operator, &created); err != nil {
			return nil, persistenceErr("scan build record", err)
		}
		r.Status = project.Status(status)
		r.CreateTime = fromMillis(created)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate build records", err)
	}
	return records, nil
}

// CountByProject returns how many records a project has.
func (s *RecordStore) CountByProject(ctx context.Context, projectID string) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var n int
	if err := s.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM build_records WHERE project_id = ?", projectID).Scan(&n); err != nil {
		return 0, persistenceErr("count build records", err)
	}
	return n, nil
}
