package storage

import (
	"context"
	"time"

	"github.com/i474232898/weather-etl/internal/metrics"
	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/pkg/logger"
)

const csvContentType = "text/csv; charset=utf-8"

// Sink is an object store that accepts whole objects by key.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Location renders key as a human-readable destination, e.g. s3://bucket/key.
	Location(key string) string
}

// Uploader serializes records to CSV and writes them to a Sink.
type Uploader struct {
	sink   Sink
	prefix string
	l      *logger.Logger
	m      *metrics.Metrics
}

func NewUploader(sink Sink, prefix string, l *logger.Logger, m *metrics.Metrics) *Uploader {
	return &Uploader{
		sink:   sink,
		prefix: prefix,
		l:      l,
		m:      m,
	}
}

// Upload writes rec as a one-row CSV named after the record's city and now.
// Storage failures are logged and returned as *weather.UploadError.
func (u *Uploader) Upload(ctx context.Context, rec weather.Record, now time.Time) (string, error) {
	body, err := weather.EncodeCSV(rec)
	if err != nil {
		return "", err
	}

	key := weather.ObjectKey(u.prefix, rec.City, now)

	if err := u.sink.Put(ctx, key, body, csvContentType); err != nil {
		uploadErr := &weather.UploadError{Key: u.sink.Location(key), Err: err}
		u.l.Error(uploadErr, map[string]any{"key": key})
		return "", uploadErr
	}

	u.m.AddUploadBytes(len(body))
	u.l.Info("data successfully written", map[string]any{
		"location": u.sink.Location(key),
		"bytes":    len(body),
	})
	return key, nil
}
