package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/siherrmann/graphae/helper"
)

// Values holds the raw field values of an entity, stored as JSONB in PostgreSQL.
// A key that is missing or maps to nil is an absent value.
type Values map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (v Values) Value() (driver.Value, error) {
	return v.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (v *Values) Scan(value interface{}) error {
	return v.Unmarshal(value)
}

// Marshal converts Values to JSON bytes
func (v Values) Marshal() ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal converts JSON bytes or Values to Values
func (v *Values) Unmarshal(value interface{}) error {
	if value == nil {
		*v = Values{}
		return nil
	}

	if s, ok := value.(Values); ok {
		*v = s
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, v)
}
