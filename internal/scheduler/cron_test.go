package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestCronSchedulerRunsJobOnSchedule(t *testing.T) {
	c := NewCronScheduler(testLogger())
	job := &countingJob{name: "every_second"}
	require.NoError(t, c.AddJob("@every 50ms", job))

	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestCronSchedulerRejectsMalformedSpec(t *testing.T) {
	c := NewCronScheduler(testLogger())
	err := c.AddJob("not a cron spec", &countingJob{name: "bad"})
	assert.Error(t, err)
}
