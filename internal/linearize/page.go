package linearize

import (
	"strings"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

// PageSeparator separates consecutive pages in document text.
const PageSeparator = "\n\n"

// Page returns the text of one page: its lines joined by newlines, with the
// result stripped of leading and trailing whitespace.
func Page(page document.Page) string {
	return joinLines(Lines(page.Tokens))
}

func joinLines(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteByte('\n')
		b.WriteString(line)
	}
	return strings.TrimSpace(b.String())
}

// Join assembles page texts, given in page order, into document text with one
// blank line between consecutive pages. Pages without text add no separator
// of their own.
func Join(pageTexts []string) string {
	parts := make([]string, 0, len(pageTexts))
	for _, t := range pageTexts {
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, PageSeparator)
}

// PageTexts linearizes every page of doc, preserving page order.
func PageTexts(doc *document.Document) []string {
	texts := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		texts[i] = Page(p)
	}
	return texts
}

// Document linearizes every page of doc and assembles the result.
func Document(doc *document.Document) string {
	return Join(PageTexts(doc))
}
