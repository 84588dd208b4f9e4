package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/divtrack/pkg/logger"
)

// blockingJob holds its run open until released so tests can overlap
// triggers deterministically
type blockingJob struct {
	name    string
	started chan struct{}
	release chan struct{}
	runs    int32
}

func newBlockingJob(name string) *blockingJob {
	return &blockingJob{
		name:    name,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (j *blockingJob) Name() string     { return j.name }
func (j *blockingJob) Schedule() string { return "*/15 12-22 * * 1-5" }

func (j *blockingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	j.started <- struct{}{}
	<-j.release
	return nil
}

func waitIdle(t *testing.T, s *Scheduler, jobName string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return !s.running[jobName]
	}, time.Second, 5*time.Millisecond)
}

func TestAddJob_Duplicate(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	job := newBlockingJob("refresh")

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
}

func TestRunJob_Unknown(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)

	err := s.RunJob("nonsense")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestRunJob_RefusesOverlap(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	job := newBlockingJob("refresh")
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob(job.name))
	<-job.started

	// a second trigger while the first run is open is refused
	err := s.RunJob(job.name)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobRunning))

	close(job.release)
	waitIdle(t, s, job.name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))

	// once idle the job can be triggered again
	job.release = make(chan struct{})
	require.NoError(t, s.RunJob(job.name))
	<-job.started
	close(job.release)
	waitIdle(t, s, job.name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&job.runs))
}

func TestRunJob_OverlappingTickSkipped(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	job := newBlockingJob("reconcile")
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob(job.name))
	<-job.started

	// a cron tick landing mid-run goes through runJob and is dropped
	done := make(chan struct{})
	go func() {
		s.runJob(job)
		close(done)
	}()
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))

	close(job.release)
	waitIdle(t, s, job.name)
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	job := newBlockingJob("refresh")
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob(job.name))
	<-job.started
	close(job.release)
	waitIdle(t, s, job.name)

	history, err := s.GetJobHistory(job.name)
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)

	stats := s.GetJobStats()
	assert.Equal(t, 1, stats[job.name].TotalRuns)
	assert.Equal(t, 1.0, stats[job.name].SuccessRate)
}
