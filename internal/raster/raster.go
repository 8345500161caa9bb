// Package raster opens documents and renders their pages to PNG images.
//
// The extraction pipeline depends only on the Opener and Document interfaces.
// FitzOpener is the MuPDF-backed implementation.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BaseDPI is the resolution of a page rendered at scale 1.
const BaseDPI = 72.0

// DefaultScale renders pages at 144 DPI.
const DefaultScale = 2.0

// ErrUnrecognizedFormat is returned for files that are not PDF documents.
var ErrUnrecognizedFormat = errors.New("unrecognized document format")

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var pdfMagic = []byte("%PDF-")

// Opener opens a document for rendering.
type Opener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Document, error)

// Open calls f.
func (f OpenerFunc) Open(path string) (Document, error) { return f(path) }

// Document is an open, paginated source. Page indices are zero-based.
type Document interface {
	PageCount() int
	RenderPNG(ctx context.Context, index int, scale float64) ([]byte, error)
	Close() error
}

// DPI converts an upscale factor to a rendering resolution.
func DPI(scale float64) float64 {
	return BaseDPI * scale
}

// CheckFormat verifies that path names a PDF: a .pdf extension and a %PDF-
// marker within the first 1024 bytes.
func CheckFormat(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%w: %s: extension is not .pdf", ErrUnrecognizedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	head := make([]byte, headerWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read document: %w", err)
	}
	if !bytes.Contains(head[:n], pdfMagic) {
		return fmt.Errorf("%w: %s: missing %%PDF- header", ErrUnrecognizedFormat, path)
	}
	return nil
}

// CheckPage validates a zero-based page index against a page count.
func CheckPage(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("page %d out of range [0, %d)", index, count)
	}
	return nil
}
