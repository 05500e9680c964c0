package journal

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// StartRetention schedules a job that deletes outcomes older than keep.
// The caller owns the returned scheduler and must Shutdown it.
func StartRetention(p Pruner, every, keep time.Duration, clock clockwork.Clock, logger *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, err := p.Prune(ctx, clock.Now().Add(-keep))
			if err != nil {
				logger.Error("journal prune failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("journal pruned", zap.Int64("deleted", n))
			}
		}),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
