package models

import "encoding/json"

// Setting is one key of the flat process-wide configuration store
type Setting struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}
