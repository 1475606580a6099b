// Package state holds the rolling context threaded between chunk
// translations: a bounded running summary, a first-write-wins glossary of
// term mappings, and the tail of the previous chunk's translation. One State
// belongs to exactly one document run and is updated only by the
// orchestrator, only after a chunk's translation succeeds.
package state

import "strings"

// DefaultTailRunes is the length of the previous-translation tail kept for
// continuity.
const DefaultTailRunes = 200

// Term maps a source-language term to its chosen target-language rendering.
type Term struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Glossary is an insertion-ordered, first-write-wins term map: once a source
// term has a target, later candidates for the same term are discarded.
// Entries are never deleted or overwritten, so its size is monotonically
// non-decreasing across a run.
type Glossary struct {
	entries []Term
	index   map[string]int
}

func NewGlossary() *Glossary {
	return &Glossary{index: make(map[string]int)}
}

// Add records t unless its source term is already known. It reports whether
// the entry was inserted.
func (g *Glossary) Add(t Term) bool {
	t.Source = strings.TrimSpace(t.Source)
	t.Target = strings.TrimSpace(t.Target)
	if t.Source == "" || t.Target == "" {
		return false
	}
	if _, seen := g.index[t.Source]; seen {
		return false
	}
	g.index[t.Source] = len(g.entries)
	g.entries = append(g.entries, t)
	return true
}

// Lookup returns the fixed target for a source term.
func (g *Glossary) Lookup(source string) (string, bool) {
	i, ok := g.index[source]
	if !ok {
		return "", false
	}
	return g.entries[i].Target, true
}

func (g *Glossary) Len() int { return len(g.entries) }

// Terms returns the entries in first-seen order. The slice is a copy.
func (g *Glossary) Terms() []Term {
	out := make([]Term, len(g.entries))
	copy(out, g.entries)
	return out
}

// State is the mutable context carrier for one document translation run.
type State struct {
	tailRunes int
	summary   string
	prevTail  string
	glossary  *Glossary
}

// New creates an empty State. tailRunes ≤ 0 selects DefaultTailRunes.
func New(tailRunes int) *State {
	if tailRunes <= 0 {
		tailRunes = DefaultTailRunes
	}
	return &State{tailRunes: tailRunes, glossary: NewGlossary()}
}

// Seed pre-populates the glossary before translation starts. Seed entries
// follow the same first-write-wins rule as runtime-discovered ones. Returns
// the number of entries actually inserted.
func (s *State) Seed(terms []Term) int {
	added := 0
	for _, t := range terms {
		if s.glossary.Add(t) {
			added++
		}
	}
	return added
}

// Apply commits a successful chunk translation: unseen observed terms join
// the glossary and the previous-tail window moves to the end of the new
// translation. Returns the number of glossary entries added.
func (s *State) Apply(translated string, observed []Term) int {
	added := 0
	for _, t := range observed {
		if s.glossary.Add(t) {
			added++
		}
	}
	if strings.TrimSpace(translated) != "" {
		s.prevTail = Tail(translated, s.tailRunes)
	}
	return added
}

// SetSummary stores summarizer output verbatim; the State does not
// regenerate summaries itself.
func (s *State) SetSummary(summary string) { s.summary = summary }

func (s *State) Summary() string      { return s.summary }
func (s *State) PreviousTail() string { return s.prevTail }
func (s *State) Glossary() *Glossary  { return s.glossary }

// Tail returns the last n runes of text.
func Tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
