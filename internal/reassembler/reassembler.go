// Package reassembler joins per-chunk translations back into one document,
// restoring the exact blank-line separators the chunker captured at each
// chunk boundary, and verifies the result still has the source's block
// structure.
package reassembler

import (
	"fmt"
	"strings"

	"github.com/vkuzmyk/mdlate/internal/chunker"
	"github.com/vkuzmyk/mdlate/internal/document"
	"github.com/vkuzmyk/mdlate/internal/orchestrator"
)

// ReassemblyError reports a result set that cannot be joined (a gap,
// duplicate, or out-of-order sequence index) or an output whose block
// structure no longer matches the source's. Fatal, not retried.
type ReassemblyError struct {
	Index  int
	Reason string
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("reassembly error at index %d: %s", e.Index, e.Reason)
}

// Reassemble joins results in sequence order. Each chunk's translated text
// is followed by its trailing blank lines, taken verbatim from the source,
// and one newline joins adjacent chunks, so the output's separators match
// the source byte for byte. results and chunks must be index-aligned; any
// gap, duplicate, or reorder is an error.
func Reassemble(results []orchestrator.Result, chunks []chunker.Chunk) (string, error) {
	if len(results) != len(chunks) {
		return "", &ReassemblyError{
			Index:  len(results),
			Reason: fmt.Sprintf("%d result(s) for %d chunk(s)", len(results), len(chunks)),
		}
	}

	for i, r := range results {
		if r.SequenceIndex != i {
			return "", &ReassemblyError{
				Index:  i,
				Reason: fmt.Sprintf("expected sequence index %d, got %d", i, r.SequenceIndex),
			}
		}
		if chunks[i].Index != i {
			return "", &ReassemblyError{
				Index:  i,
				Reason: fmt.Sprintf("chunk at position %d carries index %d", i, chunks[i].Index),
			}
		}
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			// The newline that joined the previous chunk's last block to
			// this chunk's first one.
			b.WriteString("\n")
		}
		b.WriteString(r.TranslatedText)
		writeTrailing(&b, chunks[i])
	}
	return b.String(), nil
}

// writeTrailing appends a chunk's trailing blank lines using their raw
// text, so a whitespace-only blank line keeps its whitespace. Each blank is
// preceded by the newline that joined it to the block before it; a chunk
// that is nothing but blanks has no block before its first one.
func writeTrailing(b *strings.Builder, c chunker.Chunk) {
	t := c.TrailingBlanks()
	if t == 0 {
		return
	}
	start := len(c.Blocks) - t
	for j, blk := range c.Blocks[start:] {
		if start > 0 || j > 0 {
			b.WriteString("\n")
		}
		b.WriteString(blk.Raw)
	}
}

// Verify re-parses output and compares its non-blank block kind sequence
// against the source's. A mismatch means the translation broke document
// structure (lost a heading, merged paragraphs, opened a stray fence) and
// is a *ReassemblyError; Index is the position of the first diverging
// non-blank block.
func Verify(source []document.Block, output string) error {
	parsed, err := document.Parse(output)
	if err != nil {
		return &ReassemblyError{Index: 0, Reason: fmt.Sprintf("output does not parse: %v", err)}
	}

	want := document.NonBlankKinds(source)
	got := document.NonBlankKinds(parsed)
	if len(want) != len(got) {
		return &ReassemblyError{
			Index:  0,
			Reason: fmt.Sprintf("structure changed: %d block(s) in source, %d in output", len(want), len(got)),
		}
	}
	for i := range want {
		if want[i] != got[i] {
			return &ReassemblyError{
				Index:  i,
				Reason: fmt.Sprintf("structure changed: %s became %s", want[i], got[i]),
			}
		}
	}
	return nil
}
