package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2025-06-19T10:08:20Z", time.Date(2025, 6, 19, 10, 8, 20, 0, time.UTC)},
		{"rfc3339 nano", "2025-06-19T10:08:20.123456789Z", time.Date(2025, 6, 19, 10, 8, 20, 123456789, time.UTC)},
		{"space separated", "2025-06-19 10:08:20", time.Date(2025, 6, 19, 10, 8, 20, 0, time.UTC)},
		{"no zone iso", "2025-06-19T10:08:20", time.Date(2025, 6, 19, 10, 8, 20, 0, time.UTC)},
		{"network comma format", "6/19/2025, 10:08:20 AM UTC", time.Date(2025, 6, 19, 10, 8, 20, 0, time.UTC)},
		{"comma no zone", "6/19/2025, 10:08:20 PM", time.Date(2025, 6, 19, 22, 8, 20, 0, time.UTC)},
		{"us 12h", "6/19/2025 10:08:20 AM", time.Date(2025, 6, 19, 10, 8, 20, 0, time.UTC)},
		{"us 24h", "6/19/2025 22:08:20", time.Date(2025, 6, 19, 22, 8, 20, 0, time.UTC)},
		{"us minutes only", "6/19/2025 22:08", time.Date(2025, 6, 19, 22, 8, 0, 0, time.UTC)},
		{"padded", "  2025-06-19T10:08:20Z  ", time.Date(2025, 6, 19, 10, 8, 20, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParseTimestamp_Unparseable(t *testing.T) {
	for _, in := range []string{"", "   ", "not a time", "19/06/2025 99:99", "yesterday"} {
		_, ok := ParseTimestamp(in)
		assert.False(t, ok, "input %q", in)
	}
}
