package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/vkuzmyk/mdlate/internal/document"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{"привіт", 3}, // 12 UTF-8 bytes
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSplit_BudgetTooSmall(t *testing.T) {
	_, err := Split(nil, MinBudget-1)
	if err == nil {
		t.Fatal("expected error for budget below minimum")
	}
	var ce *ChunkingError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChunkingError, got %T", err)
	}
}

func TestSplit_SingleChunkWhenUnderBudget(t *testing.T) {
	blocks := mustParse(t, "# Title\n\nShort body.")
	chunks, err := Split(blocks, 800)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Errorf("chunk index = %d, want 0", chunks[0].Index)
	}
	if err := Coverage(blocks, chunks); err != nil {
		t.Errorf("coverage violated: %v", err)
	}
}

// A heading, an oversize code fence, and a paragraph must become three
// chunks: the fence cannot be split, so it overflows the budget alone.
func TestSplit_OversizeAtomicBlockAlone(t *testing.T) {
	fence := "```\n" + strings.Repeat("x", 2390) + "\n```" // ~600 tokens
	blocks := mustParse(t, "# Title\n"+fence+"\nTrailing paragraph.")

	chunks, err := Split(blocks, 500)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[1].Blocks[0].Kind != document.CodeFence {
		t.Errorf("middle chunk is %s, want the code fence", chunks[1].Blocks[0].Kind)
	}
	if chunks[1].TokenEstimate <= 500 {
		t.Errorf("fence chunk estimate %d should exceed the budget", chunks[1].TokenEstimate)
	}
	if err := Coverage(blocks, chunks); err != nil {
		t.Errorf("coverage violated: %v", err)
	}
}

func TestSplit_BlanksFoldOntoPreviousChunk(t *testing.T) {
	p1 := strings.Repeat("aaaa ", 80) // ~100 tokens
	p2 := strings.Repeat("bbbb ", 80)
	blocks := mustParse(t, p1+"\n\n"+p2)

	chunks, err := Split(blocks, 120)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	// The separating blank belongs to the first chunk's tail, so the second
	// chunk starts with content.
	if got := chunks[0].TrailingBlanks(); got != 1 {
		t.Errorf("chunk 0 trailing blanks = %d, want 1", got)
	}
	if chunks[1].Blocks[0].Kind == document.Blank {
		t.Error("chunk 1 must not start with a blank block")
	}
	if err := Coverage(blocks, chunks); err != nil {
		t.Errorf("coverage violated: %v", err)
	}
}

// A thematic break landing exactly on a budget boundary must not open the
// next chunk; it belongs to the previous chunk's tail.
func TestSplit_ThematicBreakNeverOpensChunk(t *testing.T) {
	p1 := strings.Repeat("word ", 400) // 500 tokens
	p2 := strings.Repeat("more ", 400)
	blocks := mustParse(t, p1+"\n---\n"+p2)

	chunks, err := Split(blocks, 500)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for _, c := range chunks {
		if c.Blocks[0].Kind == document.ThematicBreak {
			t.Errorf("chunk %d opens with a thematic break", c.Index)
		}
	}
	last := chunks[0].Blocks[len(chunks[0].Blocks)-1]
	if last.Kind != document.ThematicBreak {
		t.Errorf("chunk 0 ends with %s, want the thematic break", last.Kind)
	}
	if err := Coverage(blocks, chunks); err != nil {
		t.Errorf("coverage violated: %v", err)
	}
}

// A thematic break arriving after a chunk was already flushed folds onto
// that chunk, the same way blanks do. An oversize fence forces the flush.
func TestSplit_ThematicBreakFoldsAfterFlush(t *testing.T) {
	fence := "```\n" + strings.Repeat("x", 2390) + "\n```" // ~600 tokens
	blocks := mustParse(t, fence+"\n---\nTrailing paragraph.")

	chunks, err := Split(blocks, 500)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	last := chunks[0].Blocks[len(chunks[0].Blocks)-1]
	if last.Kind != document.ThematicBreak {
		t.Errorf("chunk 0 ends with %s, want the thematic break", last.Kind)
	}
	if chunks[1].Blocks[0].Kind != document.Paragraph {
		t.Errorf("chunk 1 opens with %s, want the paragraph", chunks[1].Blocks[0].Kind)
	}
	if err := Coverage(blocks, chunks); err != nil {
		t.Errorf("coverage violated: %v", err)
	}
}

func TestChunk_PayloadExcludesTrailingBlanks(t *testing.T) {
	blocks := mustParse(t, "Paragraph one.\n\n\n")
	chunks, err := Split(blocks, 800)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	c := chunks[0]
	if c.Payload() != "Paragraph one." {
		t.Errorf("payload = %q, want the paragraph only", c.Payload())
	}
	if c.Text() != "Paragraph one.\n\n\n" {
		t.Errorf("text = %q, want the full span", c.Text())
	}
	if c.TrailingBlanks() != 3 {
		t.Errorf("trailing blanks = %d, want 3", c.TrailingBlanks())
	}
}

func TestSplit_TableRowsStayWhole(t *testing.T) {
	row := "| " + strings.Repeat("cell ", 20) + "|"
	src := strings.Repeat(row+"\n", 6)
	blocks := mustParse(t, strings.TrimSuffix(src, "\n"))

	chunks, err := Split(blocks, 30)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	for _, c := range chunks {
		for _, b := range c.Blocks {
			if b.Kind != document.TableRow {
				t.Fatalf("unexpected %s block", b.Kind)
			}
		}
	}
	if err := Coverage(blocks, chunks); err != nil {
		t.Errorf("coverage violated: %v", err)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	chunks, err := Split(nil, 800)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("got %d chunks, want 0", len(chunks))
	}
}

func mustParse(t *testing.T, src string) []document.Block {
	t.Helper()
	blocks, err := document.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return blocks
}
