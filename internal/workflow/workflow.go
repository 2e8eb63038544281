// Package workflow reads node-graph workflow files produced by the visual
// editor and extracts the references the resolution engine works on.
package workflow

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/jkoski/flowdeps/internal/errors"
)

// WorkflowNodeWidgetRef is one raw, unresolved model reference: the
// (node id, widget index) pair identifies it within a workflow, RawValue is
// the string as authored.
type WorkflowNodeWidgetRef struct {
	NodeID      string
	WidgetIndex int
	NodeType    string
	RawValue    string
}

// Analysis is everything the engine needs from one workflow file.
type Analysis struct {
	Workflow  string // workflow name, the file basename
	NodeTypes []string
	ModelRefs []WorkflowNodeWidgetRef
	// RepoHints maps node types to the source repository recorded in node
	// metadata (the editor's aux_id property), when present.
	RepoHints map[string]string
}

// builtinTypes are editor primitives that never map to a node pack.
var builtinTypes = map[string]struct{}{
	"Note":          {},
	"Reroute":       {},
	"PrimitiveNode": {},
}

// ParseFile reads and analyzes a workflow file. modelExts lists the file
// extensions treated as model references (lowercase, with leading dot).
func ParseFile(path string, modelExts []string) (*Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("workflow").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close() //nolint:errcheck // read-only file

	return Parse(f, filepath.Base(path), modelExts)
}

// Parse analyzes workflow JSON from r. The graph format is an object with a
// "nodes" array; each node has "id", "type" and an optional
// "widgets_values" array of mixed scalars.
func Parse(r io.Reader, name string, modelExts []string) (*Analysis, error) {
	root, err := jason.NewObjectFromReader(r)
	if err != nil {
		return nil, errors.New(err).
			Component("workflow").
			Category(errors.CategoryWorkflowParsing).
			Context("workflow", name).
			Build()
	}

	nodes, err := root.GetObjectArray("nodes")
	if err != nil {
		return nil, errors.Newf("workflow %q has no nodes array: %w", name, err).
			Component("workflow").
			Category(errors.CategoryWorkflowParsing).
			Build()
	}

	analysis := &Analysis{Workflow: name, RepoHints: make(map[string]string)}
	typeSet := make(map[string]struct{})

	for _, node := range nodes {
		nodeType, err := node.GetString("type")
		if err != nil || nodeType == "" {
			continue
		}
		if _, builtin := builtinTypes[nodeType]; !builtin {
			typeSet[nodeType] = struct{}{}
			if hint := repoHint(node); hint != "" {
				if _, exists := analysis.RepoHints[nodeType]; !exists {
					analysis.RepoHints[nodeType] = hint
				}
			}
		}

		nodeID := nodeIDString(node)
		values, err := node.GetValueArray("widgets_values")
		if err != nil {
			continue
		}
		for i, v := range values {
			s, err := v.String()
			if err != nil {
				continue
			}
			if !isModelRef(s, modelExts) {
				continue
			}
			analysis.ModelRefs = append(analysis.ModelRefs, WorkflowNodeWidgetRef{
				NodeID:      nodeID,
				WidgetIndex: i,
				NodeType:    nodeType,
				RawValue:    normalizePath(s),
			})
		}
	}

	analysis.NodeTypes = make([]string, 0, len(typeSet))
	for t := range typeSet {
		analysis.NodeTypes = append(analysis.NodeTypes, t)
	}
	sort.Strings(analysis.NodeTypes)

	return analysis, nil
}

// repoHint extracts the source-repository hint the editor records in node
// properties. aux_id holds either a full URL or an owner/repo shorthand.
func repoHint(node *jason.Object) string {
	props, err := node.GetObject("properties")
	if err != nil {
		return ""
	}
	aux, err := props.GetString("aux_id")
	if err != nil || aux == "" {
		return ""
	}
	if !strings.Contains(aux, "://") && !strings.HasPrefix(aux, "git@") && strings.Count(aux, "/") == 1 {
		return "https://github.com/" + aux
	}
	return aux
}

// nodeIDString reads a node id that may be serialized as number or string.
func nodeIDString(node *jason.Object) string {
	if id, err := node.GetInt64("id"); err == nil {
		return strconv.FormatInt(id, 10)
	}
	if id, err := node.GetString("id"); err == nil {
		return id
	}
	return ""
}

// isModelRef reports whether a widget value looks like a model file
// reference by extension.
func isModelRef(value string, modelExts []string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, ext := range modelExts {
		if strings.HasSuffix(v, ext) {
			return true
		}
	}
	return false
}

// normalizePath converts editor path separators to forward slashes.
func normalizePath(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
}
