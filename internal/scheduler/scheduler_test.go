package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/pkg/logger"
)

type flakyRunner struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	deadlines []bool
}

func (r *flakyRunner) Run(ctx context.Context) (weather.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	_, hasDeadline := ctx.Deadline()
	r.deadlines = append(r.deadlines, hasDeadline)

	if r.calls <= r.failFirst {
		return weather.RunResult{ID: "failed", Status: weather.RunStatusFailed}, errors.New("fetch: server error")
	}
	return weather.RunResult{ID: "ok", Status: weather.RunStatusSucceeded}, nil
}

func (r *flakyRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRunNow_SucceedsAfterRetries(t *testing.T) {
	runner := &flakyRunner{failFirst: 2}
	s := New(runner, Options{Schedule: "@daily", Retries: 2, RetryDelay: time.Millisecond}, logger.Nop())

	run, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", run.ID)
	assert.Equal(t, 3, runner.Calls())
}

func TestRunNow_ExhaustsRetries(t *testing.T) {
	runner := &flakyRunner{failFirst: 10}
	s := New(runner, Options{Schedule: "@daily", Retries: 2, RetryDelay: time.Millisecond}, logger.Nop())

	run, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, weather.RunStatusFailed, run.Status)
	assert.Equal(t, 3, runner.Calls())
}

func TestRunNow_NoRetriesOnSuccess(t *testing.T) {
	runner := &flakyRunner{}
	s := New(runner, Options{Schedule: "@daily", Retries: 2, RetryDelay: time.Hour}, logger.Nop())

	_, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.Calls())
}

func TestRunNow_ContextCancelsRetryWait(t *testing.T) {
	runner := &flakyRunner{failFirst: 10}
	s := New(runner, Options{Schedule: "@daily", Retries: 2, RetryDelay: time.Hour}, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.RunNow(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, runner.Calls())
}

func TestRunNow_AppliesRunTimeout(t *testing.T) {
	runner := &flakyRunner{}
	s := New(runner, Options{Schedule: "@daily", RunTimeout: time.Minute}, logger.Nop())

	_, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, runner.deadlines)
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&flakyRunner{}, Options{Schedule: "every tuesday-ish"}, logger.Nop())
	defer s.Stop()

	assert.Error(t, s.Start())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	runner := &flakyRunner{}
	s := New(runner, Options{Schedule: "@every 1s"}, logger.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.Calls() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestStop_CancelsRetryWait(t *testing.T) {
	runner := &flakyRunner{failFirst: 10}
	s := New(runner, Options{Schedule: "@every 1s", Retries: 2, RetryDelay: time.Minute}, logger.Nop())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return runner.Calls() >= 1 }, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, runner.Calls())
}
