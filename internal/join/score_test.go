package join

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplates/audit-cli/internal/model"
)

func TestScore_OnePointPerEntryPerIdentity(t *testing.T) {
	e := New(defaultOptions())
	entries := []model.SearchAuditEntry{portalEntry("u-1", "AAA111", 0)}
	index := indexByPlate([]model.NetworkAuditEntry{
		networkEntry("J. Smith", "Oakland PD", "AAA111", time.Minute),
		networkEntry("J. Smith", "Oakland PD", "AAA111", 2*time.Minute),
		networkEntry("J. Smith", "Oakland PD", "AAA111", 3*time.Minute),
	})

	candidates := e.score(entries, "", index)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Score)
}

func TestScore_ToleranceBoundaryInclusive(t *testing.T) {
	e := New(defaultOptions())
	entries := []model.SearchAuditEntry{portalEntry("u-1", "AAA111", 0)}

	atEdge := indexByPlate([]model.NetworkAuditEntry{
		networkEntry("J. Smith", "Oakland PD", "AAA111", 5*time.Minute),
	})
	assert.Len(t, e.score(entries, "", atEdge), 1)

	pastEdge := indexByPlate([]model.NetworkAuditEntry{
		networkEntry("J. Smith", "Oakland PD", "AAA111", 5*time.Minute+time.Second),
	})
	assert.Empty(t, e.score(entries, "", pastEdge))

	before := indexByPlate([]model.NetworkAuditEntry{
		networkEntry("J. Smith", "Oakland PD", "AAA111", -4*time.Minute),
	})
	assert.Len(t, e.score(entries, "", before), 1)
}

func TestScore_TotalOrder(t *testing.T) {
	e := New(defaultOptions())
	entries := []model.SearchAuditEntry{
		portalEntry("u-1", "AAA111", 0),
		portalEntry("u-1", "BBB222", time.Hour),
	}
	index := indexByPlate([]model.NetworkAuditEntry{
		networkEntry("J. Smith", "Oakland PD", "AAA111", time.Minute),
		networkEntry("J. Smith", "Oakland PD", "BBB222", time.Hour+time.Minute),
		networkEntry("A. Jones", "Piedmont PD", "AAA111", time.Minute),
		networkEntry("B. Lee", "Berkeley PD", "AAA111", time.Minute),
	})

	candidates := e.score(entries, "", index)
	require.Len(t, candidates, 3)
	assert.Equal(t, 2, candidates[0].Score)
	assert.Equal(t, "Oakland PD", candidates[0].Identity.Organization)
	// Equal scores order by organization then officer.
	assert.Equal(t, "Berkeley PD", candidates[1].Identity.Organization)
	assert.Equal(t, "Piedmont PD", candidates[2].Identity.Organization)
}

func TestShareGroupCompatible(t *testing.T) {
	tests := []struct {
		agency, network string
		want            bool
	}{
		{"", "", true},
		{"norcal", "", true},
		{"", "norcal", true},
		{"norcal", "norcal", true},
		{"norcal", "socal", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shareGroupCompatible(tt.agency, tt.network),
			"agency=%q network=%q", tt.agency, tt.network)
	}
}

func TestConfidence(t *testing.T) {
	e := New(Options{MinorityThreshold: 0.5})

	tests := []struct {
		name                      string
		best, runnerUp, entryCount int
		want                      float64
	}{
		{"unanimous", 4, 0, 4, 1.0},
		{"partial coverage", 2, 0, 4, 0.5},
		{"runner-up below threshold", 4, 1, 4, 1.0},
		{"runner-up at threshold", 4, 2, 4, 0.5},
		{"near tie", 4, 3, 4, 0.25},
		{"no entries", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.confidence(tt.best, tt.runnerUp, tt.entryCount), 0.001)
		})
	}
}

func TestConfidence_Clamped(t *testing.T) {
	e := New(Options{MinorityThreshold: 0.5})

	for best := 0; best <= 5; best++ {
		for runnerUp := 0; runnerUp <= best; runnerUp++ {
			got := e.confidence(best, runnerUp, 5)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		}
	}
}
