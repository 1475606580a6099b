package translator

import (
	"fmt"
	"strings"

	"github.com/vkuzmyk/mdlate/internal/placeholder"
)

// BuildSystemPrompt constructs the system prompt for LLM backends. It fixes
// the translation direction, pins the Markdown-preservation rules, and
// injects the threaded context: glossary terms (in first-seen order so
// earlier decisions read as precedent), the running document summary, and
// the tail of the previous chunk's translation.
func BuildSystemPrompt(req Request) string {
	sourceLang := req.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "the detected language"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional translator. Translate the following Markdown from %s to %s.\n", sourceLang, req.TargetLang)
	sb.WriteString("Rules:\n")
	sb.WriteString("- Preserve the Markdown structure exactly: headings, lists, tables, links, emphasis, and code fences must keep their markup.\n")
	sb.WriteString("- Keep code, URLs, and file paths unchanged.\n")
	sb.WriteString("- " + placeholder.InstructionHint() + "\n")
	sb.WriteString("- Output only the translation. No explanations, no quotes.\n")

	if len(req.Glossary) > 0 {
		sb.WriteString("\nTERMINOLOGY (use these exact translations):\n")
		for _, t := range req.Glossary {
			fmt.Fprintf(&sb, "  %s → %s\n", t.Source, t.Target)
		}
	}

	if req.Summary != "" {
		fmt.Fprintf(&sb, "\nDOCUMENT SUMMARY SO FAR (for context only):\n%s\n", req.Summary)
	}

	if req.PreviousTail != "" {
		fmt.Fprintf(&sb, "\nPREVIOUS PASSAGE TAIL (for continuity — do NOT retranslate this):\n...%s\n", req.PreviousTail)
	}

	return sb.String()
}
