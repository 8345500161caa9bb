package document

// Word is one raw record produced by a token recognizer for a page image.
//
// Confidence uses the recognizer's own scale; for Tesseract that is 0-100 with
// -1 marking entries that carry no detection.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Box returns the word's bounding box.
func (w Word) Box() BoundingBox {
	return NewBoundingBox(w.Left, w.Top, w.Width, w.Height)
}

// FilterStats reports what the confidence filter did to one page.
type FilterStats struct {
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

type filterOptions struct {
	minConfidence float64
}

// FilterOption configures NewPage.
type FilterOption func(*filterOptions)

// WithMinConfidence sets the threshold a word's confidence must strictly
// exceed to be kept. The default is 0.
func WithMinConfidence(threshold float64) FilterOption {
	return func(o *filterOptions) {
		o.minConfidence = threshold
	}
}

// NewPage builds a Page from raw recognizer output, keeping only words whose
// confidence is greater than the threshold. Surviving words keep their
// emission order.
func NewPage(number int, words []Word, opts ...FilterOption) (Page, FilterStats) {
	o := filterOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	page := Page{Number: number, Tokens: make([]Token, 0, len(words))}
	var stats FilterStats
	for _, w := range words {
		if !(w.Confidence > o.minConfidence) {
			stats.Dropped++
			continue
		}
		page.Tokens = append(page.Tokens, NewToken(w.Text, w.Box()))
		stats.Kept++
	}
	return page, stats
}
