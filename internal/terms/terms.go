// Package terms extracts source/target term pairs from a translated chunk
// so later chunks can reuse them. Extraction is advisory: a failed or empty
// extraction never fails a translation.
package terms

import (
	"context"
	"regexp"
	"strings"

	"github.com/vkuzmyk/mdlate/internal/state"
)

// DefaultMaxTerms bounds how many pairs one chunk may contribute.
const DefaultMaxTerms = 8

// Extractor reports term pairs observed while translating source into
// translated text.
type Extractor interface {
	Extract(ctx context.Context, source, translated string) ([]state.Term, error)
}

var (
	codeSpanRe  = regexp.MustCompile("`([^`\n]+)`")
	capitalized = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_-]{2,}\b`)
)

// Heuristic finds terms that survive translation verbatim: inline code
// spans and capitalized tokens from the source that also appear in the
// translated text. Such terms are almost always identifiers or proper
// nouns that must stay untranslated, so pinning them source=target keeps
// later chunks from drifting.
type Heuristic struct {
	// MaxTerms caps the pairs reported per chunk. Zero means DefaultMaxTerms.
	MaxTerms int
}

func (h Heuristic) Extract(ctx context.Context, source, translated string) ([]state.Term, error) {
	limit := h.MaxTerms
	if limit <= 0 {
		limit = DefaultMaxTerms
	}

	var candidates []string
	for _, m := range codeSpanRe.FindAllStringSubmatch(source, -1) {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	candidates = append(candidates, capitalized.FindAllString(source, -1)...)

	seen := make(map[string]bool)
	var out []state.Term
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if !strings.Contains(translated, c) {
			continue
		}
		out = append(out, state.Term{Source: c, Target: c})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
