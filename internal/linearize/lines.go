package linearize

import (
	"strings"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

// band is the closed vertical interval used to test line membership.
type band struct {
	top, bottom float64
}

func (b band) contains(y float64) bool {
	return b.top <= y && y <= b.bottom
}

// segmenter is a two-state machine: no open line, or an open line with a fixed
// band and a text buffer.
type segmenter struct {
	open  bool
	band  band
	buf   strings.Builder
	lines []string
}

func (s *segmenter) feed(tok document.Token) {
	if tok.Box != nil {
		if !s.open || !s.band.contains(tok.Box.MidY()) {
			s.startLine(band{top: tok.Box.Top(), bottom: tok.Box.Bottom()})
		}
	} else if !s.open {
		// Keep the inactive [0, 0] band so the next boxed token decides the line.
		s.startLine(band{})
	}
	s.merge(tok.Text)
}

func (s *segmenter) startLine(b band) {
	s.closeLine()
	s.open = true
	s.band = b
}

func (s *segmenter) closeLine() {
	if !s.open {
		return
	}
	s.lines = append(s.lines, strings.TrimSpace(s.buf.String()))
	s.buf.Reset()
	s.open = false
}

// merge appends one token's text to the open line.
func (s *segmenter) merge(text string) {
	if text == "" {
		cur := s.buf.String()
		if strings.HasSuffix(cur, "-") || strings.HasSuffix(cur, " ") {
			return
		}
	}
	s.buf.WriteByte(' ')
	s.buf.WriteString(text)
}

// Lines partitions tokens into lines and returns each line's text, stripped of
// surrounding whitespace, in top-to-bottom discovery order. A line that
// received tokens is returned even if its text is empty.
func Lines(tokens []document.Token) []string {
	s := &segmenter{lines: make([]string, 0)}
	for _, tok := range tokens {
		s.feed(tok)
	}
	s.closeLine()
	return s.lines
}
