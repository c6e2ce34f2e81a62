package models

import (
	"encoding/json"
	"fmt"
)

// Record is the schemaless stored form of any entity. Upgrade steps operate on
// Records so they never depend on the Go shape of an older schema version.
type Record map[string]interface{}

// ToRecord converts an entity into its stored form
func ToRecord(v interface{}) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ParseRecord(data)
}

// ParseRecord decodes a stored JSON document
func ParseRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("record is not an object")
	}
	return r, nil
}

// Decode converts the record into an entity
func (r Record) Decode(dst interface{}) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Bytes returns the JSON document stored for the record
func (r Record) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// Has reports whether key is present and not null
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns key as a string
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// SetDefault sets key only when it is missing or null
func (r Record) SetDefault(key string, value interface{}) {
	if !r.Has(key) {
		r[key] = value
	}
}

// Clone returns a shallow copy so transforms never mutate their input
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
