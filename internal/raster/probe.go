package raster

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textProbePages bounds how many pages Probe inspects for a text layer.
const textProbePages = 5

// Info summarizes a PDF without rendering it.
type Info struct {
	Path         string `json:"path"`
	Pages        int    `json:"pages"`
	HasTextLayer bool   `json:"has_text_layer"`
	SizeBytes    int64  `json:"size_bytes"`
}

// Probe reads the page count and checks the first pages for embedded text.
// Scanned documents have no text layer and need OCR.
func Probe(path string) (info *Info, err error) {
	if err := CheckFormat(path); err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("%w: %s: %v", ErrUnrecognizedFormat, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnrecognizedFormat, path, err)
	}
	defer f.Close()

	info = &Info{Path: path, Pages: r.NumPage(), SizeBytes: st.Size()}
	for i := 1; i <= info.Pages && i <= textProbePages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			info.HasTextLayer = true
			break
		}
	}
	return info, nil
}
