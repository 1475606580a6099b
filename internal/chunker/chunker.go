// Package chunker partitions a document's block sequence into ordered,
// budget-bounded chunks for translation. Chunks respect structural
// boundaries: an atomic block (code fence, table row) is never split, and
// the concatenation of all chunks' blocks reproduces the original sequence
// exactly.
package chunker

import (
	"fmt"

	"github.com/vkuzmyk/mdlate/internal/document"
)

const (
	// bytesPerToken approximates tokens as ceil(utf8_bytes / 4).
	bytesPerToken = 4

	// MinBudget is the smallest accepted token budget. Budgets below the
	// estimate of a minimal atomic block cannot produce usable chunks and
	// are a configuration error.
	MinBudget = 16
)

// ChunkingError reports a budget impossible to satisfy. Fatal, not retried.
type ChunkingError struct {
	MaxTokens int
	Reason    string
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking error (max_tokens=%d): %s", e.MaxTokens, e.Reason)
}

// Chunk is a contiguous sub-sequence of document blocks submitted as one
// translation unit.
type Chunk struct {
	// Index is the 0-based position among all chunks, assigned in creation
	// order and final.
	Index         int
	Blocks        []document.Block
	TokenEstimate int
}

// Text joins the chunk's block raw texts, reproducing its exact source span.
func (c Chunk) Text() string {
	return document.Text(c.Blocks)
}

// Payload is the text actually sent for translation: Text with trailing
// blank blocks excluded. The trailing blanks are boundary separators and are
// restored verbatim during reassembly instead of round-tripping through the
// backend.
func (c Chunk) Payload() string {
	end := len(c.Blocks) - c.TrailingBlanks()
	return document.Text(c.Blocks[:end])
}

// TrailingBlanks counts blank blocks at the end of the chunk.
func (c Chunk) TrailingBlanks() int {
	n := 0
	for i := len(c.Blocks) - 1; i >= 0 && c.Blocks[i].Kind == document.Blank; i-- {
		n++
	}
	return n
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	b := len(text)
	if b == 0 {
		return 0
	}
	return (b + bytesPerToken - 1) / bytesPerToken
}

// Split greedily accumulates consecutive blocks into chunks whose token
// estimate stays within maxTokens. A block that would exceed the budget
// closes the current chunk and opens the next one; a block whose lone
// estimate exceeds the budget occupies a chunk by itself (the budget is a
// soft ceiling, never a reason to split a block). Blank and thematic-break
// blocks never open a chunk when a previous chunk exists; they are folded
// onto the previous chunk's tail.
func Split(blocks []document.Block, maxTokens int) ([]Chunk, error) {
	if maxTokens < MinBudget {
		return nil, &ChunkingError{
			MaxTokens: maxTokens,
			Reason:    fmt.Sprintf("budget below minimum %d", MinBudget),
		}
	}

	var chunks []Chunk
	var cur []document.Block
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Blocks:        cur,
			TokenEstimate: curTokens,
		})
		cur = nil
		curTokens = 0
	}

	for _, b := range blocks {
		t := EstimateTokens(b.Raw)

		// Separators never start a chunk: a blank or thematic break that
		// arrives between chunks joins the previous chunk's tail, and one
		// that arrives mid-chunk stays with its chunk even over budget.
		if b.Kind == document.Blank || b.Kind == document.ThematicBreak {
			if len(cur) == 0 && len(chunks) > 0 {
				last := &chunks[len(chunks)-1]
				last.Blocks = append(last.Blocks, b)
				last.TokenEstimate += t
				continue
			}
			cur = append(cur, b)
			curTokens += t
			continue
		}

		if curTokens+t > maxTokens && len(cur) > 0 {
			flush()
		}

		if t > maxTokens {
			// Oversize block: keep it whole in its own chunk.
			cur = append(cur, b)
			curTokens = t
			flush()
			continue
		}

		cur = append(cur, b)
		curTokens += t
	}
	flush()

	return chunks, nil
}

// Coverage verifies the chunk invariant: chunks' blocks concatenated in
// index order must equal the original block sequence with no loss, reorder,
// or duplication.
func Coverage(original []document.Block, chunks []Chunk) error {
	pos := 0
	for _, c := range chunks {
		for _, b := range c.Blocks {
			if pos >= len(original) {
				return fmt.Errorf("chunk %d overruns original sequence", c.Index)
			}
			if b != original[pos] {
				return fmt.Errorf("chunk %d block %d diverges from original", c.Index, pos)
			}
			pos++
		}
	}
	if pos != len(original) {
		return fmt.Errorf("chunks cover %d of %d blocks", pos, len(original))
	}
	return nil
}
