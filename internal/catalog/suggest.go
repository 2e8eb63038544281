package catalog

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Suggestion is one scored candidate pack for an unknown node type.
type Suggestion struct {
	Pack       *GlobalNodePackage
	Confidence float64 // in [0,1]
}

// packSource adapts catalog entries to the fuzzy matcher.
type packSource []*GlobalNodePackage

func (p packSource) String(i int) string {
	return p[i].ID + " " + p[i].Name
}

func (p packSource) Len() int {
	return len(p)
}

// Suggest ranks catalog packs against a node type string and returns up to
// limit scored suggestions, best first. Equal scores keep catalog order.
// Confidence is the fuzzy score relative to a perfect self-match of the
// pattern, clamped to [0,1].
func (c *Catalog) Suggest(nodeType string, limit int) []Suggestion {
	pattern := strings.TrimSpace(nodeType)
	if pattern == "" || limit <= 0 {
		return nil
	}

	source := packSource(c.ordered)
	matches := fuzzy.FindFrom(pattern, source)
	if len(matches) == 0 {
		return nil
	}

	// FindFrom sorts by score but does not promise stability; re-sort
	// stably so equal scores keep first-seen (catalog) order.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	selfScore := selfMatchScore(pattern)

	if len(matches) > limit {
		matches = matches[:limit]
	}
	suggestions := make([]Suggestion, 0, len(matches))
	for _, m := range matches {
		conf := 0.0
		if selfScore > 0 && m.Score > 0 {
			conf = float64(m.Score) / float64(selfScore)
			if conf > 1 {
				conf = 1
			}
		}
		suggestions = append(suggestions, Suggestion{
			Pack:       c.ordered[m.Index],
			Confidence: conf,
		})
	}
	return suggestions
}

// selfMatchScore is the best score the pattern can achieve: matching itself.
func selfMatchScore(pattern string) int {
	m := fuzzy.Find(pattern, []string{pattern})
	if len(m) == 0 {
		return 0
	}
	return m[0].Score
}
