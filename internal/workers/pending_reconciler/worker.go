package pending_reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Resumer re-attaches monitors to non-terminal tips that lost theirs
type Resumer interface {
	ResumePending(ctx context.Context) (int, error)
}

// Worker periodically re-attaches status monitors so no pending tip goes untracked
type Worker struct {
	resumer  Resumer
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewWorker(resumer Resumer, schedule string, logger *zap.Logger) *Worker {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Worker{
		resumer:  resumer,
		schedule: schedule,
		timeout:  time.Minute,
		cron:     cron.New(),
		logger:   logger,
	}
}

func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.RunOnce); err != nil {
		return fmt.Errorf("invalid reconciliation schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()
	w.logger.Info("Pending reconciler started", zap.String("schedule", w.schedule))
	return nil
}

// RunOnce performs a single reconciliation pass
func (w *Worker) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	attached, err := w.resumer.ResumePending(ctx)
	if err != nil {
		w.logger.Error("Failed to reconcile pending tips", zap.Error(err))
	}
	if attached > 0 {
		w.logger.Warn("Re-attached monitors to untracked tips", zap.Int("count", attached))
	}
}

// Shutdown stops scheduling and waits for a running pass to finish
func (w *Worker) Shutdown(timeout time.Duration) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		w.logger.Info("Pending reconciler stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("pending reconciler still running after %s", timeout)
	}
}
