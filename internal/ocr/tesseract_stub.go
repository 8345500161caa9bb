//go:build !cgo

package ocr

import (
	"context"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

// Tesseract is unavailable without cgo.
type Tesseract struct{}

// NewTesseract always fails with ErrOCRNotEnabled.
func NewTesseract(opts ...Option) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize always fails with ErrOCRNotEnabled.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) ([]document.Word, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op.
func (t *Tesseract) Close() error { return nil }

// GetInfo reports OCR as unavailable.
func GetInfo(opts ...Option) Info {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return Info{
		Available:      false,
		Error:          ErrOCRNotEnabled.Error(),
		Backend:        "none",
		Language:       o.language,
		PageSegMode:    o.pageSegMode,
		TessdataPrefix: o.tessdataPrefix,
	}
}
