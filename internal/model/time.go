package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 timestamps, a bare date (UTC midnight) or Unix
// milliseconds. The result is in UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &TimeError{Raw: raw}
}

// TimeError reports a value ParseTime could not read.
type TimeError struct{ Raw string }

func (e *TimeError) Error() string {
	return "unrecognized date " + strconv.Quote(e.Raw) + ", want RFC 3339, YYYY-MM-DD or Unix milliseconds"
}

// decodeTime reads a JSON string or integer with ParseTime. Absent and null
// values yield nil.
func decodeTime(raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
