package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-engine/internal/service"
)

// SweepWorker runs the SLA sweep on a fixed interval.
type SweepWorker struct {
	sweeper  *service.SweepService
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweepWorker constructs the worker.
func NewSweepWorker(sweeper *service.SweepService, interval time.Duration, logger *zap.Logger) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (w *SweepWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *SweepWorker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			breached, err := w.sweeper.Sweep(ctx)
			if err != nil {
				w.logger.Error("sla sweep failed", zap.Error(err))
				continue
			}
			if len(breached) > 0 {
				w.logger.Info("sla sweep applied breaches", zap.Int("count", len(breached)))
			}
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (w *SweepWorker) Stop() {
	close(w.stop)
	<-w.done
}
