package markdown

import (
	"strings"
	"testing"
)

func TestToPlainText(t *testing.T) {
	md := "# Heading\n\nSome **bold** and `code` text.\n\n- a list item\n"
	got := ToPlainText([]byte(md))

	for _, marker := range []string{"#", "**", "<", ">"} {
		if strings.Contains(got, marker) {
			t.Errorf("markup %q leaked: %q", marker, got)
		}
	}
	for _, want := range []string{"Heading", "bold", "a list item"} {
		if !strings.Contains(got, want) {
			t.Errorf("content %q missing: %q", want, got)
		}
	}
}

func TestToPlainText_Empty(t *testing.T) {
	if got := strings.TrimSpace(ToPlainText(nil)); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
