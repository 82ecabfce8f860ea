package viewstate

import (
	"encoding/json"
	"fmt"
)

// DarkModeKey is the preference key holding the JSON-encoded theme flag.
const DarkModeKey = "darkMode"

// PreferenceStore is a minimal key-value persistence for UI preferences.
type PreferenceStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// PreferenceParseError reports a stored value that is not a JSON boolean.
type PreferenceParseError struct {
	Key   string
	Value string
	Err   error
}

func (e *PreferenceParseError) Error() string {
	return fmt.Sprintf("preference %s: cannot parse %q as boolean: %v", e.Key, e.Value, e.Err)
}

func (e *PreferenceParseError) Unwrap() error { return e.Err }

func decodeBool(key, raw string) (bool, error) {
	var v bool
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return false, &PreferenceParseError{Key: key, Value: raw, Err: err}
	}
	return v, nil
}

func encodeBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
