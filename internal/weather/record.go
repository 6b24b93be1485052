package weather

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/i474232898/weather-etl/internal/common"
)

// KelvinToFahrenheit converts a temperature from Kelvin to Fahrenheit.
func KelvinToFahrenheit(k float64) float64 {
	return (k-273.15)*9/5 + 32
}

// DecodePayload decodes a JSON current-weather response. Numbers are kept as json.Number
// so integer fields can be checked without float rounding. A JSON null yields a nil Payload.
func DecodePayload(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode weather payload: %w", err)
	}
	return p, nil
}

// BuildRecord turns a raw payload into a Record.
//
// Temperatures are converted from Kelvin to Fahrenheit. The local times are obtained by adding
// the payload's timezone offset to dt, sys.sunrise and sys.sunset and reading the sum as UTC,
// which yields the city's wall clock without a timezone database.
//
// All required fields are checked before anything is built; problems are reported together
// in a single *SchemaError.
func BuildRecord(p Payload) (Record, error) {
	if p == nil {
		return Record{}, ErrMissingData
	}

	x := &extractor{root: p}

	city := x.str("name")
	description := x.firstWeatherDescription()
	temp := x.number("main", "temp")
	feelsLike := x.number("main", "feels_like")
	tempMin := x.number("main", "temp_min")
	tempMax := x.number("main", "temp_max")
	pressure := x.number("main", "pressure")
	humidity := x.number("main", "humidity")
	windSpeed := x.number("wind", "speed")
	dt := x.integer("dt")
	offset := x.integer("timezone")
	sunrise := x.integer("sys", "sunrise")
	sunset := x.integer("sys", "sunset")

	if len(x.bad) > 0 {
		return Record{}, &SchemaError{Fields: x.bad}
	}

	return Record{
		City:         city,
		Description:  description,
		Temperature:  KelvinToFahrenheit(temp),
		FeelsLike:    KelvinToFahrenheit(feelsLike),
		MinTemp:      KelvinToFahrenheit(tempMin),
		MaxTemp:      KelvinToFahrenheit(tempMax),
		Pressure:     pressure,
		Humidity:     humidity,
		WindSpeed:    windSpeed,
		TimeOfRecord: localTime(dt, offset),
		Sunrise:      localTime(sunrise, offset),
		Sunset:       localTime(sunset, offset),
	}, nil
}

func localTime(unix, offset int64) time.Time {
	return time.Unix(unix+offset, 0).UTC()
}

// EncodeCSV serializes rec as a header row followed by exactly one data row.
func EncodeCSV(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(rec.Header()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.Write(rec.Row()); err != nil {
		return nil, fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectKey returns the storage key for a record of city uploaded at now:
// [prefix/]current_weather_data_<city>_<YYYYMMDDHHMMSS>.csv
func ObjectKey(prefix, city string, now time.Time) string {
	name := fmt.Sprintf("current_weather_data_%s_%s.csv", common.Slug(city), now.Format("20060102150405"))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// extractor walks a Payload and remembers every path it could not resolve.
type extractor struct {
	root Payload
	bad  []string
}

func (x *extractor) lookup(keys ...string) (any, bool) {
	var cur any = map[string]any(x.root)
	for _, k := range keys {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func (x *extractor) fail(keys ...string) {
	x.bad = append(x.bad, strings.Join(keys, "."))
}

func (x *extractor) str(keys ...string) string {
	v, ok := x.lookup(keys...)
	s, isStr := v.(string)
	if !ok || !isStr {
		x.fail(keys...)
		return ""
	}
	return s
}

func (x *extractor) number(keys ...string) float64 {
	v, ok := x.lookup(keys...)
	f, isNum := asFloat(v)
	if !ok || !isNum {
		x.fail(keys...)
		return 0
	}
	return f
}

func (x *extractor) integer(keys ...string) int64 {
	v, ok := x.lookup(keys...)
	n, isInt := asInt(v)
	if !ok || !isInt {
		x.fail(keys...)
		return 0
	}
	return n
}

func (x *extractor) firstWeatherDescription() string {
	const field = "weather[0].description"

	v, _ := x.lookup("weather")
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		x.bad = append(x.bad, field)
		return ""
	}
	first, ok := asMap(items[0])
	if !ok {
		x.bad = append(x.bad, field)
		return ""
	}
	desc, ok := first["description"].(string)
	if !ok {
		x.bad = append(x.bad, field)
		return ""
	}
	return desc
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Payload:
		return m, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		// NaN fails the Trunc comparison; the range check also excludes ±Inf.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
