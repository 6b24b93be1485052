package weather

import (
	"strconv"
	"time"
)

// Payload is the raw current-weather response as decoded from the API.
// It is kept untyped so that BuildRecord can report every schema problem at once.
type Payload map[string]any

// Column names of the serialized record, in output order.
var Columns = []string{
	"City",
	"Description",
	"Temperature (F)",
	"Feels Like (F)",
	"Minimum Temp (F)",
	"Maximum Temp (F)",
	"Pressure",
	"Humidity",
	"Wind Speed",
	"Time of Record",
	"Sunrise (Local Time)",
	"Sunset (Local Time)",
}

// LocalTimeLayout is the layout used for the three local timestamps.
const LocalTimeLayout = "2006-01-02 15:04:05"

// Record is the normalized, upload-ready view of one payload.
// The local times carry the city's wall clock in a UTC-denominated time.Time.
type Record struct {
	City         string    `json:"city"`
	Description  string    `json:"description"`
	Temperature  float64   `json:"temperatureF"`
	FeelsLike    float64   `json:"feelsLikeF"`
	MinTemp      float64   `json:"minTempF"`
	MaxTemp      float64   `json:"maxTempF"`
	Pressure     float64   `json:"pressure"`
	Humidity     float64   `json:"humidity"`
	WindSpeed    float64   `json:"windSpeed"`
	TimeOfRecord time.Time `json:"timeOfRecord"`
	Sunrise      time.Time `json:"sunriseLocal"`
	Sunset       time.Time `json:"sunsetLocal"`
}

// Header returns the fixed column names.
func (r Record) Header() []string {
	out := make([]string, len(Columns))
	copy(out, Columns)
	return out
}

// Row returns the record values formatted in column order.
func (r Record) Row() []string {
	return []string{
		r.City,
		r.Description,
		formatFloat(r.Temperature),
		formatFloat(r.FeelsLike),
		formatFloat(r.MinTemp),
		formatFloat(r.MaxTemp),
		formatFloat(r.Pressure),
		formatFloat(r.Humidity),
		formatFloat(r.WindSpeed),
		r.TimeOfRecord.Format(LocalTimeLayout),
		r.Sunrise.Format(LocalTimeLayout),
		r.Sunset.Format(LocalTimeLayout),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RunStatus is the outcome of one workflow run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunResult describes a single run of the workflow, successful or not.
type RunResult struct {
	ID         string    `json:"id"`
	City       string    `json:"city"`
	StartedAt  time.Time `json:"startedAt"` // always UTC
	FinishedAt time.Time `json:"finishedAt"`
	Status     RunStatus `json:"status"`
	ObjectKey  string    `json:"objectKey,omitempty"`
	Record     *Record   `json:"record,omitempty"`
	Error      string    `json:"error,omitempty"`
}
