package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-etl/internal/metrics"
	"github.com/i474232898/weather-etl/pkg/logger"
)

// Service runs the workflow once per call: readiness check, fetch, transform, upload.
// It never retries; that is left to the scheduler.
type Service struct {
	provider Provider
	uploader Uploader
	store    Store
	l        *logger.Logger
	m        *metrics.Metrics
	now      func() time.Time
}

// NewService creates a new Service. m may be nil.
func NewService(provider Provider, uploader Uploader, store Store, l *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		provider: provider,
		uploader: uploader,
		store:    store,
		l:        l,
		m:        m,
		now:      time.Now,
	}
}

// Run executes one pass of the workflow and records its outcome in the run history.
// The returned error is the first step failure, wrapped with the step name; errors.Is and
// errors.As still reach ErrMissingData, *SchemaError and *UploadError.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	run := RunResult{
		ID:        uuid.NewString(),
		City:      s.provider.City(),
		StartedAt: s.now().UTC(),
	}

	s.l.Info("weather run started", map[string]any{
		"run_id":   run.ID,
		"city":     run.City,
		"provider": s.provider.Name(),
	})

	rec, key, err := s.execute(ctx)
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
		s.l.Error(err, map[string]any{"run_id": run.ID, "city": run.City})
	} else {
		run.Status = RunStatusSucceeded
		run.ObjectKey = key
		run.Record = &rec
		s.l.Info("weather run succeeded", map[string]any{
			"run_id": run.ID,
			"key":    key,
		})
	}

	run.FinishedAt = s.now().UTC()
	s.m.ObserveRun(string(run.Status), run.FinishedAt.Sub(run.StartedAt).Seconds())

	if saveErr := s.store.SaveRun(run); saveErr != nil {
		s.l.Warning("failed to save run history", map[string]any{"run_id": run.ID, "err": saveErr.Error()})
	}

	return run, err
}

func (s *Service) execute(ctx context.Context) (Record, string, error) {
	if err := s.provider.Ready(ctx); err != nil {
		return Record{}, "", fmt.Errorf("readiness check: %w", err)
	}

	payload, err := s.provider.Fetch(ctx)
	if err != nil {
		return Record{}, "", fmt.Errorf("fetch: %w", err)
	}

	rec, err := BuildRecord(payload)
	if err != nil {
		return Record{}, "", fmt.Errorf("transform: %w", err)
	}

	key, err := s.uploader.Upload(ctx, rec, s.now().UTC())
	if err != nil {
		return Record{}, "", fmt.Errorf("load: %w", err)
	}

	return rec, key, nil
}

// Latest returns the most recent recorded run.
func (s *Service) Latest() (RunResult, error) {
	return s.store.GetLatest()
}

// Range returns recorded runs started between from and to (inclusive).
func (s *Service) Range(from, to time.Time) ([]RunResult, error) {
	return s.store.GetRange(from, to)
}
