package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func() { runs.Add(1) }))
	assert.Equal(t, 1, s.Len())

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_BadSpec(t *testing.T) {
	s := NewScheduler()
	err := s.Add("broken", "every tuesday", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

type stubSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *stubSweeper) Run(ctx context.Context) (services.SweepReport, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return services.SweepReport{}, errors.New("missing deadline")
	}
	return services.SweepReport{}, s.err
}

func TestSweepJob(t *testing.T) {
	for _, err := range []error{nil, services.ErrSweepRunning, errors.New("db down")} {
		sw := &stubSweeper{err: err}
		SweepJob(sw, time.Minute)()
		assert.Equal(t, int32(1), sw.calls.Load())
	}
}
