package document

// BoundingBox is a pixel-space rectangle on a rendered page.
type BoundingBox struct {
	X float64 `json:"x"` // Left edge
	Y float64 `json:"y"` // Top edge
	W float64 `json:"w"` // Width, never negative
	H float64 `json:"h"` // Height, never negative
}

// NewBoundingBox returns a box with negative dimensions clamped to zero.
func NewBoundingBox(x, y, w, h float64) BoundingBox {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return BoundingBox{X: x, Y: y, W: w, H: h}
}

// Top returns the top edge of the box.
func (b BoundingBox) Top() float64 { return b.Y }

// Bottom returns the bottom edge of the box.
func (b BoundingBox) Bottom() float64 { return b.Y + b.H }

// MidY returns the vertical midpoint of the box.
func (b BoundingBox) MidY() float64 { return (b.Y + b.Y + b.H) / 2 }

// Token is one recognized word or fragment.
//
// A Token with a nil Box is a structural placeholder such as an inter-word gap
// marker. It takes part in text joining but never in line grouping.
type Token struct {
	Text string       `json:"text"`
	Box  *BoundingBox `json:"box,omitempty"`
}

// NewToken creates a positioned token.
func NewToken(text string, box BoundingBox) Token {
	return Token{Text: text, Box: &box}
}

// Placeholder creates a token without a position.
func Placeholder(text string) Token {
	return Token{Text: text}
}

// Page is the set of tokens recognized on one rendered page.
type Page struct {
	// Number is the zero-based page index within the source document.
	Number int `json:"number"`

	// Tokens are in recognizer emission order, not reading order.
	Tokens []Token `json:"tokens"`
}

// Document is the ordered sequence of pages extracted from one source file.
type Document struct {
	// Source identifies the file the pages were extracted from.
	Source string `json:"source"`

	// Pages are ordered by Number ascending.
	Pages []Page `json:"pages"`
}

// TokenCount returns the total number of tokens across all pages.
func (d *Document) TokenCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Tokens)
	}
	return n
}
