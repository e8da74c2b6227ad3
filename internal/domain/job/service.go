package job

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Get for an unknown job ID.
var ErrNotFound = errors.New("job not found")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// timeLayout is fixed width so stored timestamps order lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store is the history contract used by the HTTP and retention layers.
type Store interface {
	Record(ctx context.Context, e Event) error
	Get(ctx context.Context, id string) (*Job, error)
	ListRecent(ctx context.Context, limit int) ([]*Job, error)
	Count(ctx context.Context) (int, error)
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// Service persists job history in SQLite.
type Service struct {
	db *sql.DB
}

var _ Store = (*Service)(nil)

// NewService returns a Service over a migrated database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record inserts one row for e. Recording the same job ID twice fails.
func (s *Service) Record(ctx context.Context, e Event) error {
	if e.JobID == "" {
		return errors.New("job: record: empty job id")
	}
	outcome := e.Outcome
	if outcome == "" {
		outcome = OutcomeFailed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job (
			id, method, outcome, error_class, error_message, input_ext,
			input_bytes, output_bytes, duration_ms, subject, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.JobID, e.Method, string(outcome),
		nullString(string(e.ErrorClass)), nullString(e.Error), e.InputExt,
		e.InputBytes, e.OutputBytes, e.Duration().Milliseconds(), nullString(e.Subject),
		formatTime(e.StartedAt), formatTime(e.FinishedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "job: record %s", e.JobID)
	}
	return nil
}

// Get returns the job with the given ID or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "job: get %s", id)
	}
	return j, nil
}

// ListRecent returns the newest jobs first. limit is clamped to [1, MaxListLimit];
// zero or negative selects DefaultListLimit.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Job, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx, selectJob+` ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "job: list recent")
	}
	defer rows.Close()

	jobs := make([]*Job, 0, limit)
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, errors.Wrap(scanErr, "job: scan")
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "job: list recent")
	}
	return jobs, nil
}

// Count returns the number of stored jobs.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "job: count")
	}
	return n, nil
}

// PruneBefore deletes jobs that finished before t and reports how many were removed.
func (s *Service) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job WHERE finished_at < ?`, formatTime(t))
	if err != nil {
		return 0, errors.Wrap(err, "job: prune")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "job: prune rows affected")
	}
	return n, nil
}

const selectJob = `
	SELECT id, method, outcome, error_class, error_message, input_ext,
	       input_bytes, output_bytes, duration_ms, subject, started_at, finished_at
	FROM job`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*Job, error) {
	var (
		j                     Job
		outcome               string
		class, msg, subject   sql.NullString
		startedAt, finishedAt string
	)
	if err := r.Scan(
		&j.ID, &j.Method, &outcome, &class, &msg, &j.InputExt,
		&j.InputBytes, &j.OutputBytes, &j.DurationMS, &subject, &startedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	j.Outcome = Outcome(outcome)
	j.ErrorClass = ErrorClass(class.String)
	j.Error = msg.String
	j.Subject = subject.String

	var err error
	if j.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if j.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
