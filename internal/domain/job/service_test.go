package job

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/basakesin/mri-defacing-platform/internal/infra/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.NewDB(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newEvent(method string, outcome Outcome, finished time.Time) Event {
	return Event{
		JobID:       uuid.NewString(),
		Method:      method,
		Outcome:     outcome,
		InputExt:    ".nii.gz",
		InputBytes:  1024,
		OutputBytes: 2048,
		StartedAt:   finished.Add(-1500 * time.Millisecond),
		FinishedAt:  finished,
	}
}

func TestService_RecordAndGet(t *testing.T) {
	t.Parallel()

	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := newEvent("quickshear", OutcomeFailed, finished)
	e.ErrorClass = ClassIntermediate
	e.Error = "brain extraction produced no output"
	e.Subject = "alice"

	if err := svc.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := svc.Get(ctx, e.JobID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Method != "quickshear" || got.Outcome != OutcomeFailed {
		t.Errorf("Get() = %s/%s; want quickshear/failed", got.Method, got.Outcome)
	}
	if got.ErrorClass != ClassIntermediate || got.Error != e.Error {
		t.Errorf("error fields = %q/%q; want %q/%q", got.ErrorClass, got.Error, ClassIntermediate, e.Error)
	}
	if got.DurationMS != 1500 {
		t.Errorf("DurationMS = %d; want 1500", got.DurationMS)
	}
	if got.Subject != "alice" {
		t.Errorf("Subject = %q; want alice", got.Subject)
	}
	if !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v; want %v", got.FinishedAt, finished)
	}
	if got.InputBytes != 1024 || got.OutputBytes != 2048 {
		t.Errorf("sizes = %d/%d; want 1024/2048", got.InputBytes, got.OutputBytes)
	}
}

func TestService_RecordRejectsDuplicateAndEmptyID(t *testing.T) {
	t.Parallel()

	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	e := newEvent("pydeface", OutcomeSuccess, time.Now())
	if err := svc.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := svc.Record(ctx, e); err == nil {
		t.Error("Record() duplicate id = nil error; want error")
	}

	e.JobID = ""
	if err := svc.Record(ctx, e); err == nil {
		t.Error("Record() empty id = nil error; want error")
	}
}

func TestService_GetNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(setupTestDB(t))
	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v; want ErrNotFound", err)
	}
}

func TestService_ListRecentOrderAndLimit(t *testing.T) {
	t.Parallel()

	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 5; i++ {
		e := newEvent("pydeface", OutcomeSuccess, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, e.JobID)
		if err := svc.Record(ctx, e); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	jobs, err := svc.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len(ListRecent(3)) = %d; want 3", len(jobs))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if jobs[i].ID != want {
			t.Errorf("jobs[%d].ID = %s; want %s", i, jobs[i].ID, want)
		}
	}

	all, err := svc.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent(0) error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len(ListRecent(0)) = %d; want 5", len(all))
	}

	n, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Count() = %d; want 5", n)
	}
}

func TestService_PruneBefore(t *testing.T) {
	t.Parallel()

	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	old := newEvent("mri_deface", OutcomeSuccess, cutoff.Add(-time.Hour))
	fresh := newEvent("mri_deface", OutcomeSuccess, cutoff.Add(time.Hour))
	for _, e := range []Event{old, fresh} {
		if err := svc.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := svc.PruneBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("PruneBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PruneBefore() = %d; want 1", n)
	}
	if _, err := svc.Get(ctx, old.JobID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(old) error = %v; want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, fresh.JobID); err != nil {
		t.Errorf("Get(fresh) error = %v; want nil", err)
	}
}
