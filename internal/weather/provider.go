package weather

import (
	"context"
	"time"
)

// Provider is the upstream source of current-weather payloads (e.g. OpenWeatherMap).
type Provider interface {
	Name() string
	// City is the location the provider is configured to query.
	City() string
	// Ready blocks until the upstream endpoint answers successfully or ctx ends.
	Ready(ctx context.Context) error
	Fetch(ctx context.Context) (Payload, error)
}

// Uploader serializes a record and writes it to object storage, returning the object key.
type Uploader interface {
	Upload(ctx context.Context, rec Record, now time.Time) (string, error)
}

// Store is the contract for run history (in-memory or SQLite).
type Store interface {
	SaveRun(run RunResult) error
	GetLatest() (RunResult, error)
	GetRange(from, to time.Time) ([]RunResult, error)
}
