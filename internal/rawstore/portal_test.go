package rawstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplates/audit-cli/internal/normalizer"
)

var portalContext = normalizer.FileContext{
	AgencyID:   "CA/oakland-pd",
	ScrapeDate: "2025-06-19",
}

const portalPage = `<!DOCTYPE html>
<html><body>
<div id="overview">
  <div class="box">
    Oakland PD operates
    25 cameras in partnership with Flock Safety.
  </div>
</div>
<div id="usage">
  <div class="stat"><span class="value">120,345</span><span class="label">Unique Vehicles</span></div>
  <div class="stat"><span class="value">17</span><span class="label">Hotlist Hits</span></div>
  <div class="stat"><span class="value">432</span><span class="label">Searches (last 30 days)</span></div>
</div>
</body></html>`

func TestParsePageStats(t *testing.T) {
	stats, err := ParsePageStats(strings.NewReader(portalPage), portalContext)
	require.NoError(t, err)

	assert.Equal(t, "CA/oakland-pd", stats.AgencyID)
	assert.Equal(t, "2025-06-19", stats.ScrapeDate)
	assert.Equal(t, "Oakland PD operates 25 cameras in partnership with Flock Safety.", stats.Overview)
	assert.Equal(t, 120345, stats.VehiclesDetected)
	assert.Equal(t, 17, stats.HotlistHits)
	assert.Equal(t, 432, stats.SearchesLast30d)
}

func TestParsePageStats_MissingSections(t *testing.T) {
	stats, err := ParsePageStats(strings.NewReader("<html><body><p>maintenance</p></body></html>"), portalContext)
	require.NoError(t, err)

	assert.Empty(t, stats.Overview)
	assert.Zero(t, stats.VehiclesDetected)
	assert.Zero(t, stats.HotlistHits)
	assert.Zero(t, stats.SearchesLast30d)
}

func TestParsePageStats_NonNumericValuesIgnored(t *testing.T) {
	page := `<div id="usage">
	  <div class="stat"><span class="value">N/A</span><span class="label">Hotlist Hits</span></div>
	  <div class="stat"><span class="value">432</span><span class="label">Searches</span></div>
	</div>`

	stats, err := ParsePageStats(strings.NewReader(page), portalContext)
	require.NoError(t, err)
	assert.Zero(t, stats.HotlistHits)
	assert.Equal(t, 432, stats.SearchesLast30d)
}
