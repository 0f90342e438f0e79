package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/metrics"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const DefaultSweepBatch = 100

type HardDeleter interface {
	HardDelete(ctx context.Context, actor Actor, kind lifecycle.Kind, id uuid.UUID) (*HardDeleteResult, error)
}

type SweepReport struct {
	Scanned int `json:"scanned"`
	Erased  int `json:"erased"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

var ErrSweepRunning = apperr.InvalidState("RetentionSweep", "a retention sweep is already running")

// RetentionSweeper erases entities whose grace period has ended. An entry
// is only consumed once its entity is gone, so a failed run is retried on
// the next one.
type RetentionSweeper struct {
	retention *RetentionService
	deleter   HardDeleter
	batch     int
	running   sync.Mutex
	nowFn     func() time.Time
}

func NewRetentionSweeper(retention *RetentionService, deleter HardDeleter, batch int) *RetentionSweeper {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &RetentionSweeper{retention: retention, deleter: deleter, batch: batch, nowFn: time.Now}
}

func (w *RetentionSweeper) Run(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	if !w.running.TryLock() {
		return rep, ErrSweepRunning
	}
	defer w.running.Unlock()

	start := time.Now()
	due, err := w.retention.Due(ctx, w.nowFn(), w.batch)
	if err != nil {
		return rep, err
	}
	rep.Scanned = len(due)

	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		kind, id := entry.EntityType, entry.EntityID
		_, err := w.deleter.HardDelete(ctx, SystemActor(), kind, id)
		switch {
		case err == nil:
			rep.Erased++
		case errors.Is(err, apperr.ErrNotFound):
			if _, err := w.retention.MarkProcessed(ctx, kind, id); err != nil {
				w.fail(&rep, entry.ID, kind, id, err)
				continue
			}
			rep.Skipped++
			slog.Warn("retention entry without entity marked processed", "entity_type", kind, "entity_id", id)
		default:
			w.fail(&rep, entry.ID, kind, id, err)
		}
	}

	metrics.RecordSweep(rep.Erased, rep.Skipped, rep.Failed, time.Since(start))
	if rep.Scanned > 0 {
		slog.Info("retention sweep finished",
			"scanned", rep.Scanned, "erased", rep.Erased, "skipped", rep.Skipped, "failed", rep.Failed)
	}
	return rep, nil
}

func (w *RetentionSweeper) fail(rep *SweepReport, entryID uuid.UUID, kind lifecycle.Kind, id uuid.UUID, err error) {
	rep.Failed++
	slog.Error("retention sweep failed",
		"action", "hard_delete", "entity_type", kind, "entity_id", id, "schedule_id", entryID, "error", err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("entity_type", string(kind))
		scope.SetTag("entity_id", id.String())
		sentry.CaptureException(err)
	})
}
