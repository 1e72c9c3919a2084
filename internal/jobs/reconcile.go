package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/handypro/marketplace-server/internal/service"
)

type Reconciler interface {
	ReconcileStale(ctx context.Context) (service.ReconcileStats, error)
}

// ReconcileJob periodically settles checkouts whose webhook never arrived.
type ReconcileJob struct {
	reconciler Reconciler
	interval   time.Duration
	timeout    time.Duration
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewReconcileJob(reconciler Reconciler, interval, timeout time.Duration) *ReconcileJob {
	return &ReconcileJob{
		reconciler: reconciler,
		interval:   interval,
		timeout:    timeout,
		done:       make(chan struct{}),
	}
}

func (j *ReconcileJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("reconcile job started")
}

// Stop waits for an in-flight pass to finish.
func (j *ReconcileJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("reconcile job stopped")
	})
}

func (j *ReconcileJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.reconcile()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.reconcile()
		}
	}
}

func (j *ReconcileJob) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// The reconciler logs its own stats.
	if _, err := j.reconciler.ReconcileStale(ctx); err != nil {
		log.Error().Err(err).Msg("failed to reconcile stale checkouts")
	}
}
