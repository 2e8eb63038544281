package resolver

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jkoski/flowdeps/internal/catalog"
	"github.com/jkoski/flowdeps/internal/logging"
	"github.com/jkoski/flowdeps/internal/modelindex"
)

// NodeResolutionStrategy decides what to do with node types the engine
// could not resolve automatically.
type NodeResolutionStrategy interface {
	// ResolveUnknownNode picks a pack for an unknown node type from scored
	// suggestions. ok is false when the strategy declines to choose.
	ResolveUnknownNode(nodeType string, candidates []catalog.Suggestion) (packID string, ok bool)
	// ConfirmNodeInstall approves installing packID for nodeType.
	ConfirmNodeInstall(packID, nodeType string) bool
}

// ModelResolutionStrategy disambiguates model references the engine left
// ambiguous.
type ModelResolutionStrategy interface {
	// ResolveAmbiguous returns a choice per reference key. Entries omitted
	// from the map stay unresolved.
	ResolveAmbiguous(results []ModelResolutionResult) map[RefKey]modelindex.ModelWithLocation
	// ShowSummary reports the outcome of a pass. Pure reporting, no
	// mutation.
	ShowSummary(result *WorkflowResolutionResult)
}

// maxShownCandidates caps how many candidates strategies present or
// consider per ambiguous entry.
const maxShownCandidates = 10

// InteractiveStrategy prompts on a terminal. Malformed input re-prompts and
// never propagates as an error; skipping leaves the entry unresolved.
type InteractiveStrategy struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// input returns the scanner shared by every prompt. A scanner buffers ahead
// of what it returns, so a per-prompt scanner would swallow typed-ahead
// answers meant for later prompts.
func (s *InteractiveStrategy) input() *bufio.Scanner {
	if s.scanner == nil {
		s.scanner = bufio.NewScanner(s.In)
	}
	return s.scanner
}

var _ NodeResolutionStrategy = (*InteractiveStrategy)(nil)
var _ ModelResolutionStrategy = (*InteractiveStrategy)(nil)

// ResolveUnknownNode presents the suggestions and reads a 1-based pick.
func (s *InteractiveStrategy) ResolveUnknownNode(nodeType string, candidates []catalog.Suggestion) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) > maxShownCandidates {
		candidates = candidates[:maxShownCandidates]
	}

	fmt.Fprintf(s.Out, "Unknown node type %q. Candidate packs:\n", nodeType)
	for i, c := range candidates {
		fmt.Fprintf(s.Out, "  %d) %s (%s, confidence %.2f)\n", i+1, c.Pack.ID, c.Pack.Name, c.Confidence)
	}

	idx, ok := s.readSelection(len(candidates))
	if !ok {
		return "", false
	}
	return candidates[idx].Pack.ID, true
}

// ConfirmNodeInstall asks for a y/n confirmation.
func (s *InteractiveStrategy) ConfirmNodeInstall(packID, nodeType string) bool {
	scanner := s.input()
	for {
		fmt.Fprintf(s.Out, "Install %s for node type %q? [y/n]: ", packID, nodeType)
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Fprintln(s.Out, "Please answer y or n.")
	}
}

// ResolveAmbiguous walks the ambiguous entries in order, presenting up to
// ten candidates each in index order.
func (s *InteractiveStrategy) ResolveAmbiguous(results []ModelResolutionResult) map[RefKey]modelindex.ModelWithLocation {
	choices := make(map[RefKey]modelindex.ModelWithLocation)
	for i := range results {
		res := &results[i]
		if res.ResolutionType != ResolutionAmbiguous || len(res.Candidates) == 0 {
			continue
		}
		candidates := res.Candidates
		if len(candidates) > maxShownCandidates {
			candidates = candidates[:maxShownCandidates]
		}

		fmt.Fprintf(s.Out, "Ambiguous model reference %q (node %s):\n", res.Ref.RawValue, res.Ref.NodeID)
		for j, c := range candidates {
			fmt.Fprintf(s.Out, "  %d) %s (%d bytes)\n", j+1, c.RelativePath, c.FileSize)
		}

		idx, ok := s.readSelection(len(candidates))
		if !ok {
			// Skipped entries are omitted, not defaulted.
			continue
		}
		choices[res.Key()] = candidates[idx]
	}
	return choices
}

// ShowSummary prints one line per reference outcome.
func (s *InteractiveStrategy) ShowSummary(result *WorkflowResolutionResult) {
	fmt.Fprintf(s.Out, "Resolution summary for %s:\n", result.Workflow)
	for i := range result.Nodes {
		n := &result.Nodes[i]
		pack := "-"
		if n.PackageData != nil {
			pack = n.PackageData.ID
		}
		fmt.Fprintf(s.Out, "  node %-40s %-14s %s\n", n.NodeType, n.MatchType, pack)
	}
	for i := range result.Models {
		m := &result.Models[i]
		target := "-"
		if m.Chosen != nil {
			target = m.Chosen.RelativePath
		}
		fmt.Fprintf(s.Out, "  model %-39s %-14s %s\n", m.Ref.RawValue, m.ResolutionType, target)
	}
}

// readSelection reads a 1-based index or a skip, re-prompting on malformed
// input. Returns a 0-based index.
func (s *InteractiveStrategy) readSelection(n int) (int, bool) {
	scanner := s.input()
	for {
		fmt.Fprintf(s.Out, "Select 1-%d or s to skip: ", n)
		if !scanner.Scan() {
			return 0, false
		}
		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "s") || strings.EqualFold(input, "skip") {
			return 0, false
		}
		idx, err := strconv.Atoi(input)
		if err == nil && idx >= 1 && idx <= n {
			return idx - 1, true
		}
		fmt.Fprintln(s.Out, "Invalid selection.")
	}
}

// AutoStrategy resolves without interaction: highest confidence for nodes
// (earliest wins ties), first candidate for models.
type AutoStrategy struct {
	Log *slog.Logger
}

var _ NodeResolutionStrategy = (*AutoStrategy)(nil)
var _ ModelResolutionStrategy = (*AutoStrategy)(nil)

// ResolveUnknownNode picks the candidate with maximum confidence; ties keep
// the earliest position in the input. Empty input yields no selection.
func (s *AutoStrategy) ResolveUnknownNode(nodeType string, candidates []catalog.Suggestion) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Confidence > candidates[best].Confidence {
			best = i
		}
	}
	return candidates[best].Pack.ID, true
}

// ConfirmNodeInstall always approves.
func (s *AutoStrategy) ConfirmNodeInstall(packID, nodeType string) bool {
	return true
}

// ResolveAmbiguous selects candidate index 0 for every ambiguous entry; the
// candidate list is already ordered by tier relevance.
func (s *AutoStrategy) ResolveAmbiguous(results []ModelResolutionResult) map[RefKey]modelindex.ModelWithLocation {
	return pickFirstCandidates(results)
}

// ShowSummary logs aggregate counts.
func (s *AutoStrategy) ShowSummary(result *WorkflowResolutionResult) {
	log := s.Log
	if log == nil {
		log = logging.ForService("resolver")
	}
	if log == nil {
		log = slog.Default()
	}
	log.Info("resolution summary",
		"workflow", result.Workflow,
		"run_id", result.RunID,
		"nodes", len(result.Nodes),
		"models", len(result.Models),
	)
}

// SilentStrategy takes the first model candidate and declines node choices
// entirely; nothing is printed.
type SilentStrategy struct{}

var _ NodeResolutionStrategy = (*SilentStrategy)(nil)
var _ ModelResolutionStrategy = (*SilentStrategy)(nil)

// ResolveUnknownNode declines every choice.
func (SilentStrategy) ResolveUnknownNode(nodeType string, candidates []catalog.Suggestion) (string, bool) {
	return "", false
}

// ConfirmNodeInstall declines.
func (SilentStrategy) ConfirmNodeInstall(packID, nodeType string) bool {
	return false
}

// ResolveAmbiguous selects candidate index 0 unconditionally.
func (SilentStrategy) ResolveAmbiguous(results []ModelResolutionResult) map[RefKey]modelindex.ModelWithLocation {
	return pickFirstCandidates(results)
}

// ShowSummary is a no-op.
func (SilentStrategy) ShowSummary(result *WorkflowResolutionResult) {}

func pickFirstCandidates(results []ModelResolutionResult) map[RefKey]modelindex.ModelWithLocation {
	choices := make(map[RefKey]modelindex.ModelWithLocation)
	for i := range results {
		res := &results[i]
		if res.ResolutionType != ResolutionAmbiguous || len(res.Candidates) == 0 {
			continue
		}
		choices[res.Key()] = res.Candidates[0]
	}
	return choices
}
