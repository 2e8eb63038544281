package resolver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/modelindex"
	"github.com/jkoski/flowdeps/internal/workflow"
)

func suggestion(id string, confidence float64) catalog.Suggestion {
	return catalog.Suggestion{
		Pack:       &catalog.GlobalNodePackage{ID: id, Name: id},
		Confidence: confidence,
	}
}

func ambiguousResult(raw string, candidates ...modelindex.ModelWithLocation) ModelResolutionResult {
	return ModelResolutionResult{
		Ref: workflow.WorkflowNodeWidgetRef{
			NodeID:      "7",
			WidgetIndex: 1,
			RawValue:    raw,
		},
		ResolutionType: ResolutionAmbiguous,
		Candidates:     candidates,
	}
}

func TestAutoStrategyTieBreakKeepsEarliest(t *testing.T) {
	s := &AutoStrategy{}

	packID, ok := s.ResolveUnknownNode("SomeNode", []catalog.Suggestion{
		suggestion("a", 0.5),
		suggestion("b", 0.5),
	})
	require.True(t, ok)
	assert.Equal(t, "a", packID)
}

func TestAutoStrategyPrefersHigherConfidence(t *testing.T) {
	s := &AutoStrategy{}

	packID, ok := s.ResolveUnknownNode("SomeNode", []catalog.Suggestion{
		suggestion("a", 0.3),
		suggestion("b", 0.9),
		suggestion("c", 0.7),
	})
	require.True(t, ok)
	assert.Equal(t, "b", packID)
	assert.True(t, s.ConfirmNodeInstall(packID, "SomeNode"))
}

func TestAutoStrategyEmptyCandidates(t *testing.T) {
	s := &AutoStrategy{}

	_, ok := s.ResolveUnknownNode("SomeNode", nil)
	assert.False(t, ok)
}

func TestAutoStrategyModelsPickFirst(t *testing.T) {
	s := &AutoStrategy{}
	res := ambiguousResult("model.safetensors",
		modelindex.ModelWithLocation{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
		modelindex.ModelWithLocation{Hash: testHashB, RelativePath: "loras/model.safetensors"},
	)

	choices := s.ResolveAmbiguous([]ModelResolutionResult{res})
	require.Len(t, choices, 1)
	assert.Equal(t, "checkpoints/model.safetensors", choices[res.Key()].RelativePath)
}

func TestSilentStrategy(t *testing.T) {
	s := SilentStrategy{}

	_, ok := s.ResolveUnknownNode("SomeNode", []catalog.Suggestion{suggestion("a", 1.0)})
	assert.False(t, ok)
	assert.False(t, s.ConfirmNodeInstall("a", "SomeNode"))

	res := ambiguousResult("model.safetensors",
		modelindex.ModelWithLocation{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
		modelindex.ModelWithLocation{Hash: testHashB, RelativePath: "loras/model.safetensors"},
	)
	choices := s.ResolveAmbiguous([]ModelResolutionResult{res})
	require.Len(t, choices, 1)
	assert.Equal(t, testHashA, choices[res.Key()].Hash)
}

func TestInteractiveSelectCandidate(t *testing.T) {
	var out bytes.Buffer
	s := &InteractiveStrategy{In: strings.NewReader("2\n"), Out: &out}

	res := ambiguousResult("model.safetensors",
		modelindex.ModelWithLocation{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
		modelindex.ModelWithLocation{Hash: testHashB, RelativePath: "loras/model.safetensors"},
	)
	choices := s.ResolveAmbiguous([]ModelResolutionResult{res})
	require.Len(t, choices, 1)
	assert.Equal(t, "loras/model.safetensors", choices[res.Key()].RelativePath)
	assert.Contains(t, out.String(), "checkpoints/model.safetensors")
}

func TestInteractiveRepromptsOnMalformedInput(t *testing.T) {
	var out bytes.Buffer
	s := &InteractiveStrategy{In: strings.NewReader("nope\n9\n1\n"), Out: &out}

	packID, ok := s.ResolveUnknownNode("SomeNode", []catalog.Suggestion{
		suggestion("a", 0.9),
		suggestion("b", 0.4),
	})
	require.True(t, ok)
	assert.Equal(t, "a", packID)
	assert.Contains(t, out.String(), "Invalid selection.")
}

func TestInteractiveSkipLeavesUnresolved(t *testing.T) {
	var out bytes.Buffer
	s := &InteractiveStrategy{In: strings.NewReader("s\n"), Out: &out}

	res := ambiguousResult("model.safetensors",
		modelindex.ModelWithLocation{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
		modelindex.ModelWithLocation{Hash: testHashB, RelativePath: "loras/model.safetensors"},
	)
	choices := s.ResolveAmbiguous([]ModelResolutionResult{res})
	assert.Empty(t, choices)
}

func TestInteractiveConsecutiveAmbiguousEntries(t *testing.T) {
	var out bytes.Buffer
	// Both answers arrive on one reader up front; the second must not be
	// lost to buffering done while reading the first.
	s := &InteractiveStrategy{In: strings.NewReader("1\n2\n"), Out: &out}

	first := ModelResolutionResult{
		Ref:            workflow.WorkflowNodeWidgetRef{NodeID: "4", WidgetIndex: 0, RawValue: "model.safetensors"},
		ResolutionType: ResolutionAmbiguous,
		Candidates: []modelindex.ModelWithLocation{
			{Hash: testHashA, RelativePath: "checkpoints/model.safetensors"},
			{Hash: testHashB, RelativePath: "loras/model.safetensors"},
		},
	}
	second := ModelResolutionResult{
		Ref:            workflow.WorkflowNodeWidgetRef{NodeID: "9", WidgetIndex: 0, RawValue: "style.safetensors"},
		ResolutionType: ResolutionAmbiguous,
		Candidates: []modelindex.ModelWithLocation{
			{Hash: testHashA, RelativePath: "loras/style.safetensors"},
			{Hash: testHashB, RelativePath: "embeddings/style.safetensors"},
		},
	}

	choices := s.ResolveAmbiguous([]ModelResolutionResult{first, second})
	require.Len(t, choices, 2)
	assert.Equal(t, "checkpoints/model.safetensors", choices[first.Key()].RelativePath)
	assert.Equal(t, "embeddings/style.safetensors", choices[second.Key()].RelativePath)
}

func TestInteractiveChooseThenConfirmOnOneReader(t *testing.T) {
	var out bytes.Buffer
	s := &InteractiveStrategy{In: strings.NewReader("1\ny\n"), Out: &out}

	packID, ok := s.ResolveUnknownNode("SomeNode", []catalog.Suggestion{
		suggestion("a", 0.9),
		suggestion("b", 0.4),
	})
	require.True(t, ok)
	assert.Equal(t, "a", packID)

	// The confirmation answer was piped together with the selection.
	assert.True(t, s.ConfirmNodeInstall(packID, "SomeNode"))
}

func TestInteractiveConfirmInstall(t *testing.T) {
	var out bytes.Buffer
	s := &InteractiveStrategy{In: strings.NewReader("maybe\ny\n"), Out: &out}

	assert.True(t, s.ConfirmNodeInstall("a", "SomeNode"))
	assert.Contains(t, out.String(), "Please answer y or n.")
}
