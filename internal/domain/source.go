package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DataSource records where a fact came from.
// Values include DataSourceAPI and DataSourceSynthetic.
type DataSource string

const (
	DataSourceAPI       DataSource = "api"
	DataSourceSynthetic DataSource = "synthetic"
)

// ParseDataSource converts a user supplied source name into a DataSource.
// Parameters:
//   - s: source name, case-insensitive.
// Returns:
//   - DataSource: parsed source.
//   - error: ConfigurationError if the name is not recognized.
func ParseDataSource(s string) (DataSource, error) {
	switch DataSource(strings.ToLower(strings.TrimSpace(s))) {
	case DataSourceAPI:
		return DataSourceAPI, nil
	case DataSourceSynthetic:
		return DataSourceSynthetic, nil
	default:
		return "", &ConfigurationError{
			Field:  "source",
			Reason: fmt.Sprintf("unknown source %q (want api or synthetic)", s),
		}
	}
}

// Payload keeps the raw source row next to a staging record so rejects can be
// inspected with their original content.
type Payload map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the payload.
//   - error: non-nil if marshaling fails.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = Payload{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Payload")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}
