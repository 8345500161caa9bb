package raster

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// FitzOpener renders PDF pages with MuPDF.
type FitzOpener struct{}

// Open checks the file format and opens it with MuPDF.
func (FitzOpener) Open(path string) (Document, error) {
	if err := CheckFormat(path); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnrecognizedFormat, path, err)
	}
	return &fitzDocument{doc: doc, pages: doc.NumPage()}, nil
}

type fitzDocument struct {
	mu    sync.Mutex
	doc   *fitz.Document
	pages int
}

func (d *fitzDocument) PageCount() int { return d.pages }

func (d *fitzDocument) RenderPNG(ctx context.Context, index int, scale float64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckPage(index, d.pages); err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, fmt.Errorf("scale must be positive, got %v", scale)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, fmt.Errorf("document is closed")
	}
	png, err := d.doc.ImagePNG(index, DPI(scale))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", index, err)
	}
	return png, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
