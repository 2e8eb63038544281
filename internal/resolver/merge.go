package resolver

import (
	"context"
	"log/slog"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/logging"
	"github.com/jkoski/flowdeps/internal/manifest"
	"github.com/jkoski/flowdeps/internal/modelindex"
)

// Orchestrator merges engine results into persisted state and runs
// strategies over what the engine left open. It sits between the engine and
// the strategies; the engine itself never calls a strategy.
type Orchestrator struct {
	manifest *manifest.Manifest
	index    ModelIndex
	catalog  *catalog.Catalog
	log      *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(m *manifest.Manifest, index ModelIndex, cat *catalog.Catalog) *Orchestrator {
	o := &Orchestrator{
		manifest: m,
		index:    index,
		catalog:  cat,
		log:      logging.ForService("resolver"),
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

// persistable reports whether a node result carries a pack identity that
// belongs in the persisted set. Optional matches never persist, even if
// package data happens to be present.
func persistable(n *ResolvedNodePackage) bool {
	switch n.MatchType {
	case MatchExact, MatchGitHub, MatchFuzzy, MatchUserConfirmed:
		return n.PackageData != nil
	default:
		return false
	}
}

// ApplyResolution writes resolved entries into persisted state, one write
// per reference, so earlier entries survive a failure partway through a
// batch. Adding a pack id already present is a no-op.
func (o *Orchestrator) ApplyResolution(ctx context.Context, result *WorkflowResolutionResult) error {
	for i := range result.Nodes {
		n := &result.Nodes[i]
		if !persistable(n) {
			continue
		}
		if err := o.manifest.AddNodePack(result.Workflow, n.PackageData.ID); err != nil {
			return err
		}
	}

	for i := range result.Models {
		m := &result.Models[i]
		if m.Chosen == nil {
			continue
		}
		if err := o.manifest.PinModel(result.Workflow, manifest.ModelPin{
			NodeID:       m.Ref.NodeID,
			WidgetIndex:  m.Ref.WidgetIndex,
			Hash:         m.Chosen.Hash,
			RelativePath: m.Chosen.RelativePath,
		}); err != nil {
			return err
		}
		// Record the trusted binding backing the metadata tier on reruns.
		if err := o.index.PutBinding(ctx, &modelindex.WidgetBinding{
			Workflow:     result.Workflow,
			NodeID:       m.Ref.NodeID,
			WidgetIndex:  m.Ref.WidgetIndex,
			RawValue:     m.Ref.RawValue,
			ModelHash:    m.Chosen.Hash,
			RelativePath: m.Chosen.RelativePath,
		}); err != nil {
			return err
		}
	}
	return nil
}

// FixResolution re-runs only the open subset (ambiguous models, unresolved
// nodes) through the supplied strategies, then performs the same
// progressive per-entry write as ApplyResolution. The enriched result is
// returned.
func (o *Orchestrator) FixResolution(ctx context.Context, result *WorkflowResolutionResult, nodeStrategy NodeResolutionStrategy, modelStrategy ModelResolutionStrategy) (*WorkflowResolutionResult, error) {
	if modelStrategy != nil {
		choices := modelStrategy.ResolveAmbiguous(result.AmbiguousModels())
		for i := range result.Models {
			m := &result.Models[i]
			if m.ResolutionType != ResolutionAmbiguous || m.Chosen != nil {
				continue
			}
			if chosen, ok := choices[m.Key()]; ok {
				c := chosen
				m.Chosen = &c
			}
		}
	}

	if nodeStrategy != nil {
		for i := range result.Nodes {
			n := &result.Nodes[i]
			if n.MatchType != MatchUnresolved {
				continue
			}
			packID, ok := nodeStrategy.ResolveUnknownNode(n.NodeType, n.Suggestions)
			if !ok || packID == "" {
				continue
			}
			if !nodeStrategy.ConfirmNodeInstall(packID, n.NodeType) {
				continue
			}
			n.MatchType = MatchUserConfirmed
			n.PackageData = o.packData(packID)
			n.MatchConfidence = suggestionConfidence(n.Suggestions, packID)
			o.log.Info("node type confirmed",
				"workflow", result.Workflow,
				"node_type", n.NodeType,
				"pack", packID,
			)
		}
	}

	if err := o.ApplyResolution(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) packData(packID string) *catalog.GlobalNodePackage {
	if p, ok := o.catalog.Get(packID); ok {
		return p
	}
	return &catalog.GlobalNodePackage{ID: packID}
}

// suggestionConfidence finds the confidence the suggestions assigned to a
// pack; a user choice outside the suggestion list counts as certain.
func suggestionConfidence(suggestions []catalog.Suggestion, packID string) float64 {
	for _, s := range suggestions {
		if s.Pack.ID == packID {
			return s.Confidence
		}
	}
	return 1.0
}
