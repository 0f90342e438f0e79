package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
)

type Sweeper interface {
	Run(ctx context.Context) (services.SweepReport, error)
}

// SweepJob runs one retention sweep bounded by timeout.
func SweepJob(sw Sweeper, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := sw.Run(ctx); err != nil {
			if errors.Is(err, services.ErrSweepRunning) {
				slog.Warn("retention sweep skipped, previous run still active")
				return
			}
			slog.Error("retention sweep aborted", "action", "retention_sweep", "error", err)
		}
	}
}
