package job

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule  = "@hourly"
	DefaultMaxAge    = 30 * 24 * time.Hour
	DefaultOrphanAge = 6 * time.Hour
)

var scheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// RetentionConfig controls the periodic sweep. MaxAge 0 keeps history forever;
// OrphanAge 0 or an empty WorkRoot disables the directory sweep.
type RetentionConfig struct {
	Schedule  string
	MaxAge    time.Duration
	OrphanAge time.Duration
	WorkRoot  string
	// InUse reports directories owned by a running job; the sweep never removes them.
	InUse func(dir string) bool
}

// Sweep reports what one retention pass removed.
type Sweep struct {
	PrunedJobs  int64
	RemovedDirs int
}

// Retention prunes old history and removes staging directories left behind by
// crashed or killed processes.
type Retention struct {
	store Pruner
	cfg   RetentionConfig
	now   func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// Pruner is the part of Store used by Retention.
type Pruner interface {
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}

// ParseSchedule validates a five-field cron expression or a descriptor such as @hourly.
// Timezone prefixes are rejected: schedules always run in UTC.
func ParseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, errors.New("retention schedule is required")
	}
	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, errors.New("retention schedule must not carry a timezone prefix")
	}
	schedule, err := scheduleParser.Parse(clean)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid retention schedule %q", clean)
	}
	return schedule, nil
}

// NewRetention validates cfg.Schedule and returns a stopped Retention.
func NewRetention(store Pruner, cfg RetentionConfig) (*Retention, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if _, err := ParseSchedule(cfg.Schedule); err != nil {
		return nil, err
	}
	return &Retention{store: store, cfg: cfg, now: time.Now}, nil
}

// RunOnce performs a single sweep. Directory errors are logged, not returned.
func (r *Retention) RunOnce(ctx context.Context) (Sweep, error) {
	var sweep Sweep
	now := r.now()

	if r.cfg.MaxAge > 0 && r.store != nil {
		n, err := r.store.PruneBefore(ctx, now.Add(-r.cfg.MaxAge))
		if err != nil {
			return sweep, err
		}
		sweep.PrunedJobs = n
	}

	if r.cfg.OrphanAge > 0 && r.cfg.WorkRoot != "" {
		sweep.RemovedDirs = SweepOrphans(r.cfg.WorkRoot, now.Add(-r.cfg.OrphanAge), r.cfg.InUse)
	}

	if sweep.PrunedJobs > 0 || sweep.RemovedDirs > 0 {
		logger.KV(xlog.INFO, "reason", "retention", "pruned_jobs", sweep.PrunedJobs, "removed_dirs", sweep.RemovedDirs)
	}
	return sweep, nil
}

// Start schedules RunOnce on cfg.Schedule in UTC. The scheduler stops when ctx is
// done or Stop is called.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("retention already started")
	}

	c := cron.New(cron.WithParser(scheduleParser), cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(r.cfg.Schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			logger.KV(xlog.ERROR, "reason", "retention_failed", "err", err.Error())
		}
	}); err != nil {
		return errors.Wrap(err, "schedule retention")
	}
	c.Start()
	r.cron = c

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// SweepOrphans removes WorkDirPrefix directories under root last modified before
// cutoff and returns how many were removed. Directories for which inUse is true are
// kept regardless of age; inUse may be nil.
func SweepOrphans(root string, cutoff time.Time, inUse func(dir string) bool) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.KV(xlog.WARNING, "reason", "orphan_scan_failed", "root", root, "err", err.Error())
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), WorkDirPrefix) {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if inUse != nil && inUse(path) {
			logger.KV(xlog.DEBUG, "reason", "orphan_in_use", "dir", path)
			continue
		}
		if rmErr := os.RemoveAll(path); rmErr != nil {
			logger.KV(xlog.WARNING, "reason", "orphan_remove_failed", "dir", path, "err", rmErr.Error())
			continue
		}
		removed++
	}
	return removed
}
