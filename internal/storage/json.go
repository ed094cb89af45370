package storage

import (
	"encoding/json"
	"fmt"
)

// toJSON serializes a slice column. Nil slices are stored as empty
// arrays so queries can filter on '[]'.
func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal column: %w", err)
	}
	s := string(data)
	if s == "null" {
		s = "[]"
	}
	return s, nil
}

// fromJSON deserializes a slice column, tolerating empty and null values.
func fromJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to unmarshal column: %w", err)
	}
	return nil
}
