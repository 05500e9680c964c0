package journal

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Store is the write side of the journal.
type Store interface {
	Create(ctx context.Context, o *Outcome) error
}

// Recorder writes outcomes off the caller's goroutine. Record never
// blocks; when the buffer is full the outcome is dropped and logged.
type Recorder struct {
	store  Store
	clock  clockwork.Clock
	logger *zap.Logger
	inbox  chan Outcome
}

func NewRecorder(store Store, clock clockwork.Clock, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:  store,
		clock:  clock,
		logger: logger,
		inbox:  make(chan Outcome, 64),
	}
}

func (r *Recorder) Record(o Outcome) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.clock.Now()
	}
	select {
	case r.inbox <- o:
	default:
		r.logger.Warn("journal buffer full, dropping outcome", zap.String("kind", string(o.Kind)))
	}
}

// Run drains the buffer until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case o := <-r.inbox:
			r.write(context.Background(), o)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case o := <-r.inbox:
			r.write(context.Background(), o)
		default:
			return
		}
	}
}

func (r *Recorder) write(parent context.Context, o Outcome) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()
	if err := r.store.Create(ctx, &o); err != nil {
		r.logger.Error("failed to write outcome",
			zap.String("kind", string(o.Kind)),
			zap.Error(err))
	}
}

// Discard is a Store for running without a database.
type Discard struct{}

func (Discard) Create(context.Context, *Outcome) error { return nil }
