package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) PruneAll(ctx context.Context) (int, error) {
	p.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("no deadline")
	}
	return 2, p.err
}

func TestRunTimelinePruning(t *testing.T) {
	p := &countingPruner{}
	RunTimelinePruning(context.Background(), p, time.Second)
	assert.EqualValues(t, 1, p.calls.Load())

	p.err = errors.New("boom")
	RunTimelinePruning(context.Background(), p, time.Second)
	assert.EqualValues(t, 2, p.calls.Load())
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.AddTimelinePruning("not a schedule", &countingPruner{}))
}

func TestSchedulerRunsPruning(t *testing.T) {
	p := &countingPruner{}
	s := NewScheduler()
	require.NoError(t, s.AddTimelinePruning("@every 1s", p))
	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return p.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
