// Package resolver implements the dependency resolution engine: a
// multi-tier matching pipeline classifying workflow references against the
// model index and the node registry.
package resolver

import (
	"github.com/google/uuid"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/modelindex"
	"github.com/jkoski/flowdeps/internal/workflow"
)

// ResolutionType classifies how a model reference was resolved.
type ResolutionType string

const (
	ResolutionMetadata        ResolutionType = "metadata"
	ResolutionExact           ResolutionType = "exact"
	ResolutionCaseInsensitive ResolutionType = "case_insensitive"
	ResolutionReconstructed   ResolutionType = "reconstructed"
	ResolutionFilename        ResolutionType = "filename"
	ResolutionAmbiguous       ResolutionType = "ambiguous"
	ResolutionNotFound        ResolutionType = "not_found"
)

// MatchType classifies how a node type was matched to a pack.
type MatchType string

const (
	MatchExact         MatchType = "exact"
	MatchGitHub        MatchType = "github"
	MatchFuzzy         MatchType = "fuzzy"
	MatchUserConfirmed MatchType = "user_confirmed"
	MatchOptional      MatchType = "optional"
	MatchUnresolved    MatchType = "unresolved"
)

// RefKey identifies one widget reference within a workflow.
type RefKey struct {
	NodeID      string
	WidgetIndex int
}

// ModelResolutionResult is the outcome for one model reference. Candidates
// is populated only for ambiguous outcomes, ordered by tier relevance; the
// engine does not cap it. Chosen is set by the engine for unambiguous tiers
// and by a strategy for ambiguous ones.
type ModelResolutionResult struct {
	Ref            workflow.WorkflowNodeWidgetRef
	ResolutionType ResolutionType
	Candidates     []modelindex.ModelWithLocation
	Chosen         *modelindex.ModelWithLocation
}

// Key returns the reference identity of this result.
func (r *ModelResolutionResult) Key() RefKey {
	return RefKey{NodeID: r.Ref.NodeID, WidgetIndex: r.Ref.WidgetIndex}
}

// ResolvedNodePackage is the outcome for one node type reference.
// PackageData is nil only for optional and unresolved matches. Suggestions
// carries the scored fuzzy candidates for a strategy to consider; it is
// advisory and never persisted.
type ResolvedNodePackage struct {
	NodeType        string
	PackageData     *catalog.GlobalNodePackage
	Versions        []string
	MatchType       MatchType
	MatchConfidence float64
	Suggestions     []catalog.Suggestion
}

// WorkflowResolutionResult is the engine output for one workflow.
type WorkflowResolutionResult struct {
	RunID    uuid.UUID
	Workflow string
	Nodes    []ResolvedNodePackage
	Models   []ModelResolutionResult
}

// AmbiguousModels returns the subset of model results awaiting a strategy
// choice.
func (r *WorkflowResolutionResult) AmbiguousModels() []ModelResolutionResult {
	var out []ModelResolutionResult
	for _, m := range r.Models {
		if m.ResolutionType == ResolutionAmbiguous && m.Chosen == nil {
			out = append(out, m)
		}
	}
	return out
}
