package resolver

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/logging"
	"github.com/jkoski/flowdeps/internal/modelindex"
	"github.com/jkoski/flowdeps/internal/observability/metrics"
	"github.com/jkoski/flowdeps/internal/registry"
	"github.com/jkoski/flowdeps/internal/workflow"
)

// ModelIndex is the view of the model index the engine needs.
type ModelIndex interface {
	FindByRelativePath(ctx context.Context, relativePath string) ([]modelindex.ModelWithLocation, error)
	FindByRelativePathFold(ctx context.Context, relativePath string) ([]modelindex.ModelWithLocation, error)
	FindByFilename(ctx context.Context, substr string) ([]modelindex.ModelWithLocation, error)
	CategoryDirs(ctx context.Context) ([]string, error)
	GetBinding(ctx context.Context, workflow, nodeID string, widgetIndex int, rawValue string) (*modelindex.WidgetBinding, error)
	PutBinding(ctx context.Context, binding *modelindex.WidgetBinding) error
}

// NodeRegistry is the view of the local node registry the engine needs.
type NodeRegistry interface {
	Lookup(nodeType string) (registry.Entry, bool)
	PackVersions(packID string) []string
}

// Config tunes the engine.
type Config struct {
	// Categories lists the top-level model directories used by path
	// reconstruction. When empty, the directories present in the index are
	// used instead.
	Categories []string
	// ConfidenceThreshold is the fuzzy score at or above which a node match
	// is accepted without a strategy.
	ConfidenceThreshold float64
	// MaxSuggestions bounds the fuzzy suggestions attached to an
	// unresolved node result.
	MaxSuggestions int
	// OptionalNodeTypes marks node types whose absence is acceptable.
	OptionalNodeTypes map[string]struct{}
}

// Engine resolves workflow references. It never invokes a strategy; an
// orchestrator runs strategies between engine passes.
type Engine struct {
	index   ModelIndex
	nodes   NodeRegistry
	catalog *catalog.Catalog
	urls    *catalog.Resolver
	cfg     Config
	metrics *metrics.ResolverMetrics
	log     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics attaches resolver metrics.
func WithMetrics(m *metrics.ResolverMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the default service logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine. The catalog is an explicitly owned dependency; the
// URL resolver is derived from it once, here.
func New(cfg Config, index ModelIndex, nodes NodeRegistry, cat *catalog.Catalog, opts ...EngineOption) *Engine {
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 10
	}
	e := &Engine{
		index:   index,
		nodes:   nodes,
		catalog: cat,
		urls:    catalog.NewResolver(cat),
		cfg:     cfg,
		log:     logging.ForService("resolver"),
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveWorkflow classifies every reference in the analysis. Ambiguity is
// a result value, never an error; only index failures propagate.
func (e *Engine) ResolveWorkflow(ctx context.Context, analysis *workflow.Analysis) (*WorkflowResolutionResult, error) {
	start := time.Now()
	result := &WorkflowResolutionResult{
		RunID:    uuid.New(),
		Workflow: analysis.Workflow,
	}

	for _, nodeType := range analysis.NodeTypes {
		resolved := e.resolveNodeType(nodeType, analysis.RepoHints[nodeType])
		e.metrics.RecordNodeResolution(string(resolved.MatchType))
		result.Nodes = append(result.Nodes, resolved)
	}

	for _, ref := range analysis.ModelRefs {
		res, err := e.resolveModelRef(ctx, analysis.Workflow, ref)
		if err != nil {
			return nil, err
		}
		e.metrics.RecordModelResolution(string(res.ResolutionType))
		result.Models = append(result.Models, res)
	}

	e.metrics.RecordResolutionPass(time.Since(start))
	e.log.Info("workflow resolved",
		"run_id", result.RunID,
		"workflow", analysis.Workflow,
		"node_types", len(result.Nodes),
		"model_refs", len(result.Models),
	)
	return result, nil
}

// resolveModelRef runs the fixed tier order, stopping at the first tier
// that yields exactly one candidate and falling through on zero or many.
func (e *Engine) resolveModelRef(ctx context.Context, wf string, ref workflow.WorkflowNodeWidgetRef) (ModelResolutionResult, error) {
	res := ModelResolutionResult{Ref: ref}

	// Tier 1: a trusted binding from a previous resolution of this exact
	// reference. Keeps reruns stable even if the path set changed
	// ambiguously in the meantime.
	binding, err := e.index.GetBinding(ctx, wf, ref.NodeID, ref.WidgetIndex, ref.RawValue)
	if err != nil {
		return res, err
	}
	if binding != nil {
		rows, err := e.index.FindByRelativePath(ctx, binding.RelativePath)
		if err != nil {
			return res, err
		}
		if len(rows) == 1 && rows[0].Hash == binding.ModelHash {
			res.ResolutionType = ResolutionMetadata
			res.Chosen = &rows[0]
			return res, nil
		}
		// Binding no longer verifiable against the index; re-derive below.
	}

	// ambiguous carries every multi-match candidate seen on the way down,
	// earlier tiers first.
	var pool []modelindex.ModelWithLocation

	collect := func(rows []modelindex.ModelWithLocation) {
		for _, row := range rows {
			dup := false
			for _, have := range pool {
				if have.RelativePath == row.RelativePath {
					dup = true
					break
				}
			}
			if !dup {
				pool = append(pool, row)
			}
		}
	}

	// Tier 2: exact relative path.
	rows, err := e.index.FindByRelativePath(ctx, ref.RawValue)
	if err != nil {
		return res, err
	}
	if len(rows) == 1 {
		res.ResolutionType = ResolutionExact
		res.Chosen = &rows[0]
		return res, nil
	}
	collect(rows)

	// Tier 3: case-folded path comparison.
	rows, err = e.index.FindByRelativePathFold(ctx, ref.RawValue)
	if err != nil {
		return res, err
	}
	if len(rows) == 1 {
		res.ResolutionType = ResolutionCaseInsensitive
		res.Chosen = &rows[0]
		return res, nil
	}
	collect(rows)

	// Tier 4: reconstruct category-dir prefixes for bare filenames and for
	// paths whose authored leading directory is unknown to the index.
	rows, err = e.reconstruct(ctx, ref.RawValue)
	if err != nil {
		return res, err
	}
	if len(rows) == 1 {
		res.ResolutionType = ResolutionReconstructed
		res.Chosen = &rows[0]
		return res, nil
	}
	collect(rows)

	// Tier 5: filename-only match.
	rows, err = e.index.FindByFilename(ctx, path.Base(ref.RawValue))
	if err != nil {
		return res, err
	}
	if len(rows) == 1 {
		res.ResolutionType = ResolutionFilename
		res.Chosen = &rows[0]
		return res, nil
	}
	collect(rows)

	if len(pool) > 0 {
		res.ResolutionType = ResolutionAmbiguous
		res.Candidates = pool
		return res, nil
	}

	res.ResolutionType = ResolutionNotFound
	return res, nil
}

// reconstruct probes <category>/<basename> for each known category
// directory. It applies only when the raw value is a bare filename or its
// leading directory is absent from the index; an unrecognized authored
// category therefore falls through to the filename tier.
func (e *Engine) reconstruct(ctx context.Context, rawValue string) ([]modelindex.ModelWithLocation, error) {
	dirs := e.cfg.Categories
	indexDirs, err := e.index.CategoryDirs(ctx)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		dirs = indexDirs
	}

	if slash := strings.IndexByte(rawValue, '/'); slash > 0 {
		lead := rawValue[:slash]
		for _, d := range indexDirs {
			if d == lead {
				// Authored directory exists; tiers 2-3 were authoritative.
				return nil, nil
			}
		}
	}

	base := path.Base(rawValue)
	var hits []modelindex.ModelWithLocation
	for _, dir := range dirs {
		rows, err := e.index.FindByRelativePath(ctx, dir+"/"+base)
		if err != nil {
			return nil, err
		}
		hits = append(hits, rows...)
	}
	return hits, nil
}

// resolveNodeType matches one node type against the registry, then the
// URL map, then fuzzy catalog suggestions.
func (e *Engine) resolveNodeType(nodeType, repoHint string) ResolvedNodePackage {
	_, optional := e.cfg.OptionalNodeTypes[nodeType]

	// 1: installed locally.
	if entry, ok := e.nodes.Lookup(nodeType); ok {
		return ResolvedNodePackage{
			NodeType:        nodeType,
			PackageData:     e.packData(entry.PackID),
			Versions:        e.nodes.PackVersions(entry.PackID),
			MatchType:       MatchExact,
			MatchConfidence: 1.0,
		}
	}

	// 2: known source repository URL.
	if repoHint != "" {
		if packID, ok := e.urls.PackByURL(repoHint); ok {
			return ResolvedNodePackage{
				NodeType:        nodeType,
				PackageData:     e.packData(packID),
				Versions:        e.nodes.PackVersions(packID),
				MatchType:       MatchGitHub,
				MatchConfidence: 1.0,
			}
		}
	}

	// 3: fuzzy suggestions; auto-accept only above the threshold.
	suggestions := e.catalog.Suggest(nodeType, e.cfg.MaxSuggestions)
	if len(suggestions) > 0 && !optional && suggestions[0].Confidence >= e.cfg.ConfidenceThreshold {
		top := suggestions[0]
		return ResolvedNodePackage{
			NodeType:        nodeType,
			PackageData:     top.Pack,
			Versions:        e.nodes.PackVersions(top.Pack.ID),
			MatchType:       MatchFuzzy,
			MatchConfidence: top.Confidence,
			Suggestions:     suggestions,
		}
	}

	if optional {
		return ResolvedNodePackage{
			NodeType:    nodeType,
			MatchType:   MatchOptional,
			Suggestions: suggestions,
		}
	}
	return ResolvedNodePackage{
		NodeType:    nodeType,
		MatchType:   MatchUnresolved,
		Suggestions: suggestions,
	}
}

// packData returns catalog data for a pack id, synthesizing a minimal entry
// for packs the catalog does not know.
func (e *Engine) packData(packID string) *catalog.GlobalNodePackage {
	if p, ok := e.catalog.Get(packID); ok {
		return p
	}
	return &catalog.GlobalNodePackage{ID: packID}
}
