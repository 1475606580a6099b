// Package summarizer maintains the bounded rolling summary passed as
// context with each chunk translation. The Rolling implementation is local
// and extractive; Ollama delegates to an LLM. Either way the result is
// advisory context, never output.
package summarizer

import (
	"context"
	"strings"

	"github.com/vkuzmyk/mdlate/internal/markdown"
)

// DefaultMaxRunes bounds the rolling summary length.
const DefaultMaxRunes = 1200

// Summarizer folds a chunk's translated text into the running summary,
// keeping the result within maxRunes.
type Summarizer interface {
	Summarize(ctx context.Context, previous, addition string, maxRunes int) (string, error)
}

// Rolling is a local extractive summarizer: it strips markup from the new
// text, keeps its leading sentences, appends them to the previous summary,
// and trims the oldest material when the cap is exceeded. It never fails.
type Rolling struct{}

// additionCap bounds how much of one chunk enters the summary.
const additionCap = 280

func (Rolling) Summarize(ctx context.Context, previous, addition string, maxRunes int) (string, error) {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	plain := strings.Join(strings.Fields(markdown.ToPlainText([]byte(addition))), " ")
	condensed := leadingSentences(plain, 2)
	if condensed == "" {
		return previous, nil
	}

	merged := strings.TrimSpace(previous + " " + condensed)
	runes := []rune(merged)
	if len(runes) > maxRunes {
		// Drop the oldest material; recent context matters most.
		merged = strings.TrimSpace(string(runes[len(runes)-maxRunes:]))
	}
	return merged, nil
}

// leadingSentences returns up to n sentences from text, capped at
// additionCap runes.
func leadingSentences(text string, n int) string {
	count := 0
	end := len(text)
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && text[i+1] == ' ' {
			count++
			if count == n {
				end = i + 1
				break
			}
		}
	}
	out := strings.TrimSpace(text[:end])
	runes := []rune(out)
	if len(runes) > additionCap {
		out = string(runes[:additionCap])
	}
	return out
}
