package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC)

	got, err := ParseTime("2024-03-05T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseTime("2024-03-05T14:30:00+02:00")
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	got, err = ParseTime("1709641800000")
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	got, err = ParseTime("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("05/03/2024")
	var tErr *TimeError
	assert.True(t, errors.As(err, &tErr))
}

func TestLogData_DecodeCreatedFormats(t *testing.T) {
	want := time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		created string
		want    time.Time
	}{
		{"rfc3339", `"2024-03-05T12:30:00Z"`, want},
		{"offset", `"2024-03-05T14:30:00+02:00"`, want},
		{"unix millis number", `1709641800000`, want},
		{"unix millis string", `"1709641800000"`, want},
		{"bare date", `"2024-03-05"`, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d LogData
			require.NoError(t, json.Unmarshal([]byte(`{"level":"info","meta":{"k":1},"created":`+tt.created+`}`), &d))
			require.NotNil(t, d.Created)
			assert.True(t, tt.want.Equal(*d.Created), "got %v", d.Created)
			assert.Equal(t, "info", d.Level)
			assert.Equal(t, map[string]any{"k": float64(1)}, d.Meta)
		})
	}
}

func TestLogData_DecodeCreatedMissingOrInvalid(t *testing.T) {
	var d LogData
	require.NoError(t, json.Unmarshal([]byte(`{"level":"info"}`), &d))
	assert.Nil(t, d.Created)

	require.NoError(t, json.Unmarshal([]byte(`{"created":null}`), &d))
	assert.Nil(t, d.Created)

	assert.Error(t, json.Unmarshal([]byte(`{"created":"yesterday"}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"created":1.5}`), &d))
}

func TestLogPatch_DecodeCreated(t *testing.T) {
	var p LogPatch
	require.NoError(t, json.Unmarshal([]byte(`{"created":"2024-03-05","meta":null}`), &p))
	require.NotNil(t, p.Created)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), *p.Created)
	assert.Equal(t, json.RawMessage("null"), p.Meta)

	assert.Error(t, json.Unmarshal([]byte(`{"created":"soon"}`), &p))
}
