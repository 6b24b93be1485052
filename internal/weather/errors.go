package weather

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingData is returned when there is no payload to transform.
var ErrMissingData = errors.New("no weather payload to transform")

// SchemaError reports every required payload field that was absent or of the wrong type.
type SchemaError struct {
	Fields []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("weather payload schema: missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// UploadError wraps a failed write of a serialized record to storage.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
