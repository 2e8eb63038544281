package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog([]*GlobalNodePackage{
		{ID: "comfyui-impact-pack", Name: "Impact Pack", RepositoryURL: "https://github.com/ltdrdata/ComfyUI-Impact-Pack"},
		{ID: "comfyui-controlnet-aux", Name: "ControlNet Auxiliary", RepositoryURL: "git@github.com:Fannovel16/comfyui_controlnet_aux.git"},
		{ID: "was-node-suite", Name: "WAS Node Suite", RepositoryURL: "https://www.github.com/WASasquatch/was-node-suite-comfyui/tree/main"},
		{ID: "broken-pack", Name: "Broken", RepositoryURL: "not a url"},
	})
}

func TestLoadCatalogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	payload := `{
		"comfyui-impact-pack": {
			"name": "Impact Pack",
			"description": "Detection and detailing nodes",
			"author": "ltdrdata",
			"repository": "https://github.com/ltdrdata/ComfyUI-Impact-Pack",
			"stars": 1500,
			"license": "GPL-3.0"
		},
		"was-node-suite": {
			"name": "WAS Node Suite",
			"repository": "https://github.com/WASasquatch/was-node-suite-comfyui"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	p, ok := c.Get("comfyui-impact-pack")
	require.True(t, ok)
	assert.Equal(t, "ltdrdata", p.Author)
	assert.Equal(t, int64(1500), p.Stars)

	// All() is deterministic: sorted by pack id
	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "comfyui-impact-pack", all[0].ID)
	assert.Equal(t, "was-node-suite", all[1].ID)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestResolverBidirectionalMap(t *testing.T) {
	t.Parallel()

	r := NewResolver(testCatalog())

	// Any accepted URL form resolves after normalization
	id, ok := r.PackByURL("git@github.com:ltdrdata/ComfyUI-Impact-Pack.git")
	require.True(t, ok)
	assert.Equal(t, "comfyui-impact-pack", id)

	id, ok = r.PackByURL("https://github.com/Fannovel16/comfyui_controlnet_aux")
	require.True(t, ok)
	assert.Equal(t, "comfyui-controlnet-aux", id)

	u, ok := r.URLByPack("was-node-suite")
	require.True(t, ok)
	assert.Equal(t, "https://github.com/WASasquatch/was-node-suite-comfyui", u)

	// Entries without a canonicalizable URL are not URL-resolvable
	_, ok = r.URLByPack("broken-pack")
	assert.False(t, ok)

	_, ok = r.PackByURL("https://github.com/nobody/unknown")
	assert.False(t, ok)
}

func TestSuggestOrderingAndBounds(t *testing.T) {
	t.Parallel()

	c := testCatalog()

	suggestions := c.Suggest("impact pack", 10)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "comfyui-impact-pack", suggestions[0].Pack.ID)
	assert.Greater(t, suggestions[0].Confidence, 0.0)
	assert.LessOrEqual(t, suggestions[0].Confidence, 1.0)

	// Scores arrive best-first
	for i := 1; i < len(suggestions); i++ {
		assert.GreaterOrEqual(t, suggestions[i-1].Confidence, suggestions[i].Confidence)
	}

	assert.Empty(t, c.Suggest("", 10))
	assert.Empty(t, c.Suggest("impact", 0))
	assert.LessOrEqual(t, len(c.Suggest("comfyui", 2)), 2)
}
