package rawstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, root string, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "CA", "oakland-pd", "2025-06-19", "audit_export.csv")
	writeArtifact(t, root, "CA", "oakland-pd", "2025-06-19", "page_content.html")
	writeArtifact(t, root, "CA", "oakland-pd", "2025-06-19", "notes.pdf")
	writeArtifact(t, root, "Uncategorized", "some-agency", "2025-06-20", "export.xlsx")

	artifacts, err := Walk(root)
	require.NoError(t, err)
	require.Len(t, artifacts, 4)

	first := artifacts[0]
	assert.Equal(t, ArtifactAuditExport, first.Kind)
	assert.Equal(t, "CA/oakland-pd", first.Context.AgencyID)
	assert.Equal(t, "CA", first.Context.Jurisdiction)
	assert.Equal(t, "oakland-pd", first.Context.DisplayName)
	assert.Equal(t, "2025-06-19", first.Context.ScrapeDate)

	assert.Equal(t, ArtifactOther, artifacts[1].Kind)       // notes.pdf
	assert.Equal(t, ArtifactPageCapture, artifacts[2].Kind) // page_content.html

	last := artifacts[3]
	assert.Equal(t, ArtifactAuditExport, last.Kind)
	assert.Equal(t, "Uncategorized/some-agency", last.Context.AgencyID)
}

func TestWalk_SkipsBookkeepingFiles(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "history.csv")                                // depth 1
	writeArtifact(t, root, "CA", "progress.txt")                         // depth 2
	writeArtifact(t, root, "CA", "oakland-pd", "stale.csv")              // depth 3
	writeArtifact(t, root, "CA", "oakland-pd", "not-a-date", "a.csv")    // bad date
	writeArtifact(t, root, "California", "pd", "2025-06-19", "a.csv")    // bad jurisdiction
	writeArtifact(t, root, "ca", "oakland-pd", "2025-06-19", "a.csv")    // lowercase
	writeArtifact(t, root, "CA", "oakland-pd", "2025-06-19", "good.csv")

	artifacts, err := Walk(root)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "good.csv", filepath.Base(artifacts[0].Path))
}

func TestWalk_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "NV", "reno-pd", "2025-06-19", "b.csv")
	writeArtifact(t, root, "CA", "oakland-pd", "2025-06-19", "a.csv")

	artifacts, err := Walk(root)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Less(t, artifacts[0].Path, artifacts[1].Path)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want ArtifactKind
	}{
		{"audit_export.csv", ArtifactAuditExport},
		{"Export.XLSX", ArtifactAuditExport},
		{"page_content.html", ArtifactPageCapture},
		{"PAGE_CONTENT.HTML", ArtifactPageCapture},
		{"other.html", ArtifactOther},
		{"notes.pdf", ArtifactOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.name), tt.name)
	}
}
