package job

import (
	"context"

	"github.com/effective-security/xlog"

	"github.com/basakesin/mri-defacing-platform/internal/infra/eventbus"
)

// Recorder persists every job event published on eventbus.TopicJob.
type Recorder struct {
	store Store
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Start subscribes to the job topic before returning, then records events in a
// background goroutine until ctx is done or the bus is closed. The returned
// channel is closed when that goroutine exits.
func (r *Recorder) Start(ctx context.Context, bus eventbus.EventBus) <-chan struct{} {
	ch := bus.Subscribe(eventbus.TopicJob)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				r.handle(ctx, evt)
			}
		}
	}()
	return done
}

func (r *Recorder) handle(ctx context.Context, evt eventbus.Event) {
	var e Event
	switch p := evt.Payload.(type) {
	case Event:
		e = p
	case *Event:
		if p == nil {
			return
		}
		e = *p
	default:
		logger.KV(xlog.WARNING, "reason", "unexpected_payload", "topic", evt.Topic)
		return
	}

	// Best effort: a failed insert must not stop the recorder.
	if err := r.store.Record(ctx, e); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "record_failed", "job", e.JobID, "err", err.Error())
	}
}
