package normalizer

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testContext = FileContext{
	AgencyID:     "CA/oakland-pd",
	Jurisdiction: "CA",
	DisplayName:  "oakland-pd",
	ScrapeDate:   "2025-06-19",
}

func TestNormalize(t *testing.T) {
	rows := [][]string{
		{"User GUID", "Plate Searched", "Search Timestamp", "Reason", "Camera Count", "Network"},
		{"u-42", "abc 123", "2025-06-19T10:08:20Z", "stolen vehicle", "17", "norcal"},
		{"u-42", "XYZ-789", "6/19/2025, 10:12:00 AM UTC", "", "", ""},
	}

	res, err := Normalize(rows, testContext)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Empty(t, res.RowErrors)
	assert.Zero(t, res.Partial)

	first := res.Entries[0]
	assert.Equal(t, "CA/oakland-pd", first.AgencyID)
	assert.Equal(t, "CA", first.Jurisdiction)
	assert.Equal(t, "2025-06-19", first.ScrapeDate)
	assert.Equal(t, "u-42", first.SurrogateID)
	assert.Equal(t, "ABC123", first.PlateQuery)
	assert.Equal(t, "2025-06-19T10:08:20Z", first.RawTimestamp)
	assert.Equal(t, "stolen vehicle", first.Reason)
	assert.Equal(t, 17, first.CameraCount)
	assert.False(t, first.Partial)
	assert.Equal(t, map[string]string{"Network": "norcal"}, first.RawFields)

	second := res.Entries[1]
	assert.Equal(t, "XYZ789", second.PlateQuery)
	assert.Equal(t, time.Date(2025, 6, 19, 10, 12, 0, 0, time.UTC), second.SearchTime)
}

func TestNormalize_HeaderVariants(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{"snake case", []string{"user_guid", "plate_query", "search_timestamp"}},
		{"kebab case", []string{"User-ID", "License-Plate", "Date-Time"}},
		{"mixed spacing", []string{"  Requester ", "Plate  Number", "Searched At"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := [][]string{tt.header, {"u-1", "AAA111", "2025-01-02T03:04:05Z"}}
			res, err := Normalize(rows, testContext)
			require.NoError(t, err)
			require.Len(t, res.Entries, 1)
			assert.Equal(t, "u-1", res.Entries[0].SurrogateID)
			assert.Equal(t, "AAA111", res.Entries[0].PlateQuery)
		})
	}
}

func TestNormalize_UnrecognizedFormat(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"empty file", nil},
		{"no surrogate column", [][]string{{"plate", "timestamp"}, {"AAA111", "2025-01-02T03:04:05Z"}}},
		{"no plate column", [][]string{{"user id", "timestamp"}, {"u-1", "2025-01-02T03:04:05Z"}}},
		{"no timestamp column", [][]string{{"user id", "plate"}, {"u-1", "AAA111"}}},
		{"unrelated export", [][]string{{"camera name", "last seen", "status"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.rows, testContext)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrUnrecognizedFormat))
		})
	}
}

func TestNormalize_RowErrors(t *testing.T) {
	rows := [][]string{
		{"user id", "plate", "timestamp"},
		{"", "AAA111", "2025-01-02T03:04:05Z"},
		{"u-1", "", "2025-01-02T03:04:05Z"},
		{"u-1", "AAA111", "2025-01-02T03:04:05Z"},
	}

	res, err := Normalize(rows, testContext)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	require.Len(t, res.RowErrors, 2)
	assert.Equal(t, 2, res.RowErrors[0].Line)
	assert.Equal(t, "missing surrogate id", res.RowErrors[0].Reason)
	assert.Equal(t, 3, res.RowErrors[1].Line)
	assert.Equal(t, "missing plate query", res.RowErrors[1].Reason)
}

func TestNormalize_PartialTimestampKept(t *testing.T) {
	rows := [][]string{
		{"user id", "plate", "timestamp"},
		{"u-1", "AAA111", "sometime last tuesday"},
	}

	res, err := Normalize(rows, testContext)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, 1, res.Partial)

	e := res.Entries[0]
	assert.True(t, e.Partial)
	assert.True(t, e.SearchTime.IsZero())
	assert.Equal(t, "sometime last tuesday", e.RawTimestamp)
}

func TestNormalize_BlankRowsSkipped(t *testing.T) {
	rows := [][]string{
		{"user id", "plate", "timestamp"},
		{"u-1", "AAA111", "2025-01-02T03:04:05Z"},
		{"", "", ""},
		{""},
	}

	res, err := Normalize(rows, testContext)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Empty(t, res.RowErrors)
}

func TestNormalize_ShortRowsTolerated(t *testing.T) {
	rows := [][]string{
		{"user id", "plate", "timestamp", "reason"},
		{"u-1", "AAA111", "2025-01-02T03:04:05Z"},
	}

	res, err := Normalize(rows, testContext)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Empty(t, res.Entries[0].Reason)
}

func TestMapColumns_ExtrasPreserved(t *testing.T) {
	header := []string{"user id", "plate", "timestamp", "Vehicle Make", "Hotlist"}
	fields, extras := MapColumns(header, portalAliases)

	assert.Equal(t, 0, fields[FieldSurrogate])
	assert.Equal(t, 1, fields[FieldPlate])
	assert.Equal(t, 2, fields[FieldTimestamp])
	assert.Equal(t, []int{3, 4}, extras)
}

func TestMapColumns_DuplicateHeadersFirstWins(t *testing.T) {
	header := []string{"plate", "plate"}
	fields, extras := MapColumns(header, portalAliases)

	assert.Equal(t, 0, fields[FieldPlate])
	assert.Equal(t, []int{1}, extras)
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc123", "ABC123"},
		{" abc 123 ", "ABC123"},
		{"ABC-123", "ABC123"},
		{"a b-c 1", "ABC1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePlate(tt.in), "input %q", tt.in)
	}
}
