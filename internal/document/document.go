// Package document defines the structural model of a parsed Markdown
// document: an ordered sequence of typed, immutable blocks. Blocks carry the
// exact raw source text so that a translated document can be reassembled
// without altering any markup the translation left untouched.
package document

// Kind identifies the structural type of a block.
type Kind int

const (
	Blank Kind = iota
	Heading
	Paragraph
	ListItem
	CodeFence
	TableRow
	HTML
	ThematicBreak
)

var kindNames = map[Kind]string{
	Blank:         "blank",
	Heading:       "heading",
	Paragraph:     "paragraph",
	ListItem:      "list-item",
	CodeFence:     "code-fence",
	TableRow:      "table-row",
	HTML:          "html",
	ThematicBreak: "thematic-break",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Block is one structural unit of a document. Created once by Parse and
// read-only thereafter.
type Block struct {
	Kind Kind
	// Level is the nesting depth: heading level for headings, indentation
	// depth for list items, zero otherwise.
	Level int
	// Raw is the exact source text of the block, internal newlines included,
	// without a trailing newline.
	Raw string
	// Atomic blocks (code fences, table rows) must never be split across
	// chunk boundaries.
	Atomic bool
}

// Kinds returns the kind sequence of blocks, for structural comparison.
func Kinds(blocks []Block) []Kind {
	out := make([]Kind, len(blocks))
	for i, b := range blocks {
		out[i] = b.Kind
	}
	return out
}

// NonBlankKinds returns the kind sequence with blank blocks removed. Blank
// runs may legitimately differ in width between a source document and its
// translation; the non-blank sequence is what structural parity compares.
func NonBlankKinds(blocks []Block) []Kind {
	var out []Kind
	for _, b := range blocks {
		if b.Kind != Blank {
			out = append(out, b.Kind)
		}
	}
	return out
}
