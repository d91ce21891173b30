package loading

import (
	"slices"

	"github.com/dd0wney/cluso-graphalgo/pkg/store"
)

// unresolved stands in for names the store has never seen. No record
// carries it, so a filter made only of unknown names matches nothing.
const unresolved store.TokenID = -1

// LabelSet is a small set of label or relationship-type tokens. An empty
// set accepts everything.
type LabelSet []store.TokenID

// Accepts reports whether a record with token tok passes the filter.
func (s LabelSet) Accepts(tok store.TokenID) bool {
	return len(s) == 0 || slices.Contains(s, tok)
}

// AcceptsAny reports whether a record carrying tokens passes the filter:
// at least one token must match.
func (s LabelSet) AcceptsAny(tokens []store.TokenID) bool {
	if len(s) == 0 {
		return true
	}
	for _, t := range tokens {
		if slices.Contains(s, t) {
			return true
		}
	}
	return false
}

// resolveTokens maps names to tokens with lookup. Unknown names are
// reported and contribute nothing; if every name is unknown the set
// matches nothing.
func resolveTokens(names []string, lookup func(string) (store.TokenID, bool)) (LabelSet, []string) {
	if len(names) == 0 {
		return nil, nil
	}
	set := make(LabelSet, 0, len(names))
	var unknown []string
	for _, name := range names {
		tok, ok := lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if !slices.Contains(set, tok) {
			set = append(set, tok)
		}
	}
	if len(set) == 0 {
		set = append(set, unresolved)
	}
	return set, unknown
}
