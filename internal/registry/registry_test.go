package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndLookup(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "registry.json")
	payload := `{
		"FaceDetailer": {"pack": "comfyui-impact-pack", "version": "4.80", "repository": "https://github.com/ltdrdata/ComfyUI-Impact-Pack"},
		"UltralyticsDetectorProvider": {"pack": "comfyui-impact-pack", "version": "4.80"},
		"SAMLoader": {"pack": "comfyui-impact-pack", "version": "4.75"},
		"Orphan": {"version": "1.0"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	r, err := Load(path, time.Minute)
	require.NoError(t, err)

	e, ok := r.Lookup("FaceDetailer")
	require.True(t, ok)
	assert.Equal(t, "comfyui-impact-pack", e.PackID)
	assert.Equal(t, "https://github.com/ltdrdata/ComfyUI-Impact-Pack", e.RepositoryURL)

	// Entries missing a pack id are dropped
	_, ok = r.Lookup("Orphan")
	assert.False(t, ok)

	_, ok = r.Lookup("NotInstalled")
	assert.False(t, ok)
}

func TestPackVersionsDistinctSortedAndCached(t *testing.T) {
	t.Parallel()

	r := New(map[string]Entry{
		"A": {PackID: "pack-x", Version: "2.0"},
		"B": {PackID: "pack-x", Version: "1.0"},
		"C": {PackID: "pack-x", Version: "2.0"},
		"D": {PackID: "pack-y", Version: "9.9"},
	}, time.Minute)

	versions := r.PackVersions("pack-x")
	assert.Equal(t, []string{"1.0", "2.0"}, versions)

	// Second call served from cache, identical result
	assert.Equal(t, versions, r.PackVersions("pack-x"))
	assert.Empty(t, r.PackVersions("pack-unknown"))
}

func TestNodeTypesSorted(t *testing.T) {
	t.Parallel()

	r := New(map[string]Entry{
		"Zeta": {PackID: "p"},
		"Alpha": {PackID: "p"},
	}, time.Minute)

	assert.Equal(t, []string{"Alpha", "Zeta"}, r.NodeTypes())
}
