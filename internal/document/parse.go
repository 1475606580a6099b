package document

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports malformed document structure. It is fatal and surfaced
// before chunking begins.
type ParseError struct {
	Line   int // 1-based source line
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s`)
	fenceRe    = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})(.*)$")
	breakRe    = regexp.MustCompile(`^(?:\*\s*){3,}$|^(?:-\s*){3,}$|^(?:_\s*){3,}$`)
	listItemRe = regexp.MustCompile(`^(\s*)(?:[-*+]|\d{1,9}[.)])\s+`)
	htmlOpenRe = regexp.MustCompile(`^</?[A-Za-z][A-Za-z0-9-]*(\s[^>]*)?/?>?`)
)

// Parse scans raw Markdown into its ordered block sequence. The scan is
// line-structural: it recognizes the boundaries that matter for chunking
// (headings, fenced code, table rows, list items, HTML blocks, thematic
// breaks, blank lines) and keeps each block's source text verbatim, so that
// joining all block Raw values with "\n" reproduces the input exactly
// (CRLF line endings are normalized to LF first).
//
// An unterminated code fence is a structural defect and returns *ParseError.
func Parse(src string) ([]Block, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")

	var blocks []Block
	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			blocks = append(blocks, Block{Kind: Blank, Raw: line})
			i++

		case isFenceOpen(line):
			end, err := findFenceClose(lines, i)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, Block{
				Kind:   CodeFence,
				Raw:    strings.Join(lines[i:end+1], "\n"),
				Atomic: true,
			})
			i = end + 1

		case headingRe.MatchString(line):
			level := len(headingRe.FindStringSubmatch(line)[1])
			blocks = append(blocks, Block{Kind: Heading, Level: level, Raw: line})
			i++

		case breakRe.MatchString(trimmed):
			blocks = append(blocks, Block{Kind: ThematicBreak, Raw: line})
			i++

		case strings.HasPrefix(trimmed, "|"):
			// Every table row (including the delimiter row) is its own
			// atomic block so that a table never straddles a chunk boundary
			// mid-row.
			blocks = append(blocks, Block{Kind: TableRow, Raw: line, Atomic: true})
			i++

		case strings.HasPrefix(trimmed, "<") && htmlOpenRe.MatchString(trimmed):
			end := continuationEnd(lines, i)
			blocks = append(blocks, Block{
				Kind: HTML,
				Raw:  strings.Join(lines[i:end], "\n"),
			})
			i = end

		case listItemRe.MatchString(line):
			indent := len(listItemRe.FindStringSubmatch(line)[1])
			end := listItemEnd(lines, i, indent)
			blocks = append(blocks, Block{
				Kind:  ListItem,
				Level: indent / 2,
				Raw:   strings.Join(lines[i:end], "\n"),
			})
			i = end

		default:
			end := continuationEnd(lines, i)
			blocks = append(blocks, Block{
				Kind: Paragraph,
				Raw:  strings.Join(lines[i:end], "\n"),
			})
			i = end
		}
	}
	return blocks, nil
}

// Text reconstructs the source text of a block sequence.
func Text(blocks []Block) string {
	raws := make([]string, len(blocks))
	for i, b := range blocks {
		raws[i] = b.Raw
	}
	return strings.Join(raws, "\n")
}

func isFenceOpen(line string) bool {
	return fenceRe.MatchString(line)
}

// findFenceClose returns the index of the line closing the fence opened at
// open, or a ParseError when the document ends first.
func findFenceClose(lines []string, open int) (int, error) {
	m := fenceRe.FindStringSubmatch(lines[open])
	marker := m[1]
	for j := open + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if len(t) >= len(marker) && strings.Trim(t, string(marker[0])) == "" &&
			strings.HasPrefix(t, marker[:1]) {
			return j, nil
		}
	}
	return 0, &ParseError{Line: open + 1, Reason: "unterminated code fence"}
}

// continuationEnd returns the exclusive end index of a run of plain lines
// starting at i: the run stops at a blank line or at the start of any other
// structural element.
func continuationEnd(lines []string, i int) int {
	j := i + 1
	for j < len(lines) {
		t := strings.TrimSpace(lines[j])
		if t == "" || isFenceOpen(lines[j]) || headingRe.MatchString(lines[j]) ||
			breakRe.MatchString(t) || strings.HasPrefix(t, "|") ||
			listItemRe.MatchString(lines[j]) {
			break
		}
		j++
	}
	return j
}

// listItemEnd extends a list item over its continuation lines: non-blank
// lines indented deeper than the item's marker that do not start a sibling
// item or another structural element.
func listItemEnd(lines []string, i, indent int) int {
	j := i + 1
	for j < len(lines) {
		line := lines[j]
		t := strings.TrimSpace(line)
		if t == "" || isFenceOpen(line) || headingRe.MatchString(line) ||
			breakRe.MatchString(t) || strings.HasPrefix(t, "|") {
			break
		}
		if listItemRe.MatchString(line) {
			break
		}
		if leadingSpaces(line) <= indent {
			break
		}
		j++
	}
	return j
}

func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}
