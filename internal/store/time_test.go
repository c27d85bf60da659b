package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdatedAt(t *testing.T) {
	want := time.Date(2024, 6, 15, 10, 30, 45, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"empty", "", time.Time{}},
		{"driver format", "2024-06-15 10:30:45+00:00", want},
		{"driver format with nanos", "2024-06-15 10:30:45.5+00:00", want.Add(500 * time.Millisecond)},
		{"offset converted to UTC", "2024-06-15 05:30:45-05:00", want},
		{"rfc3339", "2024-06-15T10:30:45Z", want},
		{"z suffix", "2024-06-15 10:30:45Z", want},
		{"sqlite datetime()", "2024-06-15 10:30:45", want},
		{"T separator without zone", "2024-06-15T10:30:45", want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUpdatedAt(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			if !got.IsZero() {
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}

	for _, bad := range []string{"not-a-date", "2024-06-15"} {
		_, err := parseUpdatedAt(bad)
		assert.Error(t, err, bad)
	}
}
