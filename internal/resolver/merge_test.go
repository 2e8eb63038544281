package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/manifest"
	"github.com/jkoski/flowdeps/internal/modelindex"
	"github.com/jkoski/flowdeps/internal/workflow"
)

func setupManifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(filepath.Join(t.TempDir(), "flowdeps.yaml"))
	require.NoError(t, err)
	return m
}

func orchestratorCatalog() *catalog.Catalog {
	return catalog.NewCatalog([]*catalog.GlobalNodePackage{
		{ID: "shared-package", Name: "Shared Package"},
		{ID: "other-package", Name: "Other Package"},
	})
}

// chooseStrategy always picks a fixed pack for unknown nodes.
type chooseStrategy struct {
	packID string
}

func (s chooseStrategy) ResolveUnknownNode(nodeType string, candidates []catalog.Suggestion) (string, bool) {
	return s.packID, true
}

func (s chooseStrategy) ConfirmNodeInstall(packID, nodeType string) bool { return true }

func TestApplyResolutionSkipsOptionalAndUnresolved(t *testing.T) {
	m := setupManifest(t)
	s := setupIndex(t)
	o := NewOrchestrator(m, s, orchestratorCatalog())

	result := &WorkflowResolutionResult{
		RunID:    uuid.New(),
		Workflow: "wf.json",
		Nodes: []ResolvedNodePackage{
			{
				NodeType:        "KSampler",
				PackageData:     &catalog.GlobalNodePackage{ID: "comfyui-core"},
				MatchType:       MatchExact,
				MatchConfidence: 1.0,
			},
			{
				NodeType: "NiceToHave",
				// Package data present but the match is optional; it must
				// still stay out of the persisted set.
				PackageData: &catalog.GlobalNodePackage{ID: "optional-pack"},
				MatchType:   MatchOptional,
			},
			{
				NodeType:  "MysteryNode",
				MatchType: MatchUnresolved,
			},
		},
	}

	require.NoError(t, o.ApplyResolution(context.Background(), result))

	packs, err := m.GetNodePacks("wf.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"comfyui-core"}, packs)
}

func TestApplyResolutionPinsModelsAndRecordsBindings(t *testing.T) {
	m := setupManifest(t)
	s := setupIndex(t)
	ctx := context.Background()
	indexFile(t, s, testHashA, "checkpoints/model.safetensors")
	o := NewOrchestrator(m, s, orchestratorCatalog())

	result := &WorkflowResolutionResult{
		RunID:    uuid.New(),
		Workflow: "wf.json",
		Models: []ModelResolutionResult{
			{
				Ref: workflow.WorkflowNodeWidgetRef{
					NodeID:      "4",
					WidgetIndex: 0,
					RawValue:    "model.safetensors",
				},
				ResolutionType: ResolutionReconstructed,
				Chosen: &modelindex.ModelWithLocation{
					Hash:         testHashA,
					RelativePath: "checkpoints/model.safetensors",
				},
			},
		},
	}

	require.NoError(t, o.ApplyResolution(ctx, result))

	pins := m.Models("wf.json")
	require.Len(t, pins, 1)
	assert.Equal(t, testHashA, pins[0].Hash)
	assert.Equal(t, "checkpoints/model.safetensors", pins[0].RelativePath)

	binding, err := s.GetBinding(ctx, "wf.json", "4", 0, "model.safetensors")
	require.NoError(t, err)
	require.NotNil(t, binding)
	assert.Equal(t, testHashA, binding.ModelHash)
}

func TestFixResolutionDeduplicatesConfirmedPacks(t *testing.T) {
	m := setupManifest(t)
	s := setupIndex(t)
	o := NewOrchestrator(m, s, orchestratorCatalog())

	// Two unknown node types map to the same pack; the persisted set must
	// contain it exactly once.
	result := &WorkflowResolutionResult{
		RunID:    uuid.New(),
		Workflow: "wf.json",
		Nodes: []ResolvedNodePackage{
			{NodeType: "NodeA", MatchType: MatchUnresolved},
			{NodeType: "NodeB", MatchType: MatchUnresolved},
		},
	}

	fixed, err := o.FixResolution(context.Background(), result, chooseStrategy{packID: "shared-package"}, nil)
	require.NoError(t, err)

	for _, n := range fixed.Nodes {
		assert.Equal(t, MatchUserConfirmed, n.MatchType)
		require.NotNil(t, n.PackageData)
		assert.Equal(t, "shared-package", n.PackageData.ID)
	}

	packs, err := m.GetNodePacks("wf.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared-package"}, packs)
}

func TestFixResolutionResolvesAmbiguousModels(t *testing.T) {
	m := setupManifest(t)
	s := setupIndex(t)
	ctx := context.Background()
	indexFile(t, s, testHashA, "checkpoints/model.safetensors")
	indexFile(t, s, testHashB, "loras/model.safetensors")
	o := NewOrchestrator(m, s, orchestratorCatalog())

	result := &WorkflowResolutionResult{
		RunID:    uuid.New(),
		Workflow: "wf.json",
		Models: []ModelResolutionResult{
			ambiguousResult("model.safetensors",
				modelindex.ModelWithLocation{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
				modelindex.ModelWithLocation{Hash: testHashB, RelativePath: "loras/model.safetensors"},
			),
		},
	}

	fixed, err := o.FixResolution(ctx, result, nil, SilentStrategy{})
	require.NoError(t, err)

	require.NotNil(t, fixed.Models[0].Chosen)
	assert.Equal(t, testHashA, fixed.Models[0].Chosen.Hash)

	pins := m.Models("wf.json")
	require.Len(t, pins, 1)
	assert.Equal(t, testHashA, pins[0].Hash)

	// The choice is now a trusted binding; a later pass resolves it via
	// the metadata tier without re-prompting.
	e := testEngine(t, s, Config{Categories: []string{"checkpoints", "loras"}})
	res := resolveOne(t, e, "wf.json", "model.safetensors")
	assert.Equal(t, ResolutionMetadata, res.ResolutionType)
}

func TestFixResolutionLeavesSkippedEntriesOpen(t *testing.T) {
	m := setupManifest(t)
	s := setupIndex(t)
	o := NewOrchestrator(m, s, orchestratorCatalog())

	result := &WorkflowResolutionResult{
		RunID:    uuid.New(),
		Workflow: "wf.json",
		Models: []ModelResolutionResult{
			ambiguousResult("model.safetensors",
				modelindex.ModelWithLocation{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
				modelindex.ModelWithLocation{Hash: testHashB, RelativePath: "loras/model.safetensors"},
			),
		},
		Nodes: []ResolvedNodePackage{
			{NodeType: "MysteryNode", MatchType: MatchUnresolved},
		},
	}

	fixed, err := o.FixResolution(context.Background(), result, SilentStrategy{}, skipModelStrategy{})
	require.NoError(t, err)

	assert.Nil(t, fixed.Models[0].Chosen)
	assert.Equal(t, ResolutionAmbiguous, fixed.Models[0].ResolutionType)
	assert.Equal(t, MatchUnresolved, fixed.Nodes[0].MatchType)
	assert.Empty(t, m.Models("wf.json"))
}

// skipModelStrategy declines every ambiguous entry.
type skipModelStrategy struct{}

func (skipModelStrategy) ResolveAmbiguous(results []ModelResolutionResult) map[RefKey]modelindex.ModelWithLocation {
	return map[RefKey]modelindex.ModelWithLocation{}
}

func (skipModelStrategy) ShowSummary(result *WorkflowResolutionResult) {}
