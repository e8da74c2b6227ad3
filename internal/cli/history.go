package cli

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"

	"github.com/basakesin/mri-defacing-platform/internal/domain/job"
	"github.com/basakesin/mri-defacing-platform/internal/infra/config"
	"github.com/basakesin/mri-defacing-platform/internal/infra/eventbus"
	"github.com/basakesin/mri-defacing-platform/internal/infra/sqlite"
)

// history is the job database plus the bus feeding it.
type history struct {
	db        *sql.DB
	bus       *eventbus.Bus
	store     *job.Service
	retention *job.Retention
	recorded  <-chan struct{}
}

// openHistory opens the job database, starts recording jobs published on bus and
// schedules retention. inUse protects live work directories from the orphan sweep.
// On success Close takes ownership of bus.
func openHistory(ctx context.Context, cfg config.Config, bus *eventbus.Bus, inUse func(dir string) bool) (*history, error) {
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "open job database")
	}

	store := job.NewService(db)
	retention, err := job.NewRetention(store, job.RetentionConfig{
		Schedule:  cfg.RetentionSchedule,
		MaxAge:    cfg.HistoryRetention,
		OrphanAge: cfg.OrphanAge,
		WorkRoot:  cfg.WorkDir,
		InUse:     inUse,
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Mark(err, config.ErrInvalid)
	}

	h := &history{db: db, bus: bus, store: store, retention: retention}
	// The recorder outlives ctx so runs finishing during shutdown are still stored.
	h.recorded = job.NewRecorder(store).Start(context.WithoutCancel(ctx), h.bus)

	if _, err := retention.RunOnce(ctx); err != nil {
		logger.KV(xlog.WARNING, "reason", "initial_sweep", "err", err.Error())
	}
	if err := retention.Start(ctx); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Close stops retention, drains the recorder and closes the database.
func (h *history) Close() {
	h.retention.Stop()
	h.bus.Close()
	<-h.recorded
	if err := h.db.Close(); err != nil {
		logger.KV(xlog.WARNING, "reason", "close_db", "err", err.Error())
	}
}
