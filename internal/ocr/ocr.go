package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

// ErrOCRNotEnabled is returned when the binary was built without cgo.
var ErrOCRNotEnabled = errors.New("ocr: tesseract support not compiled in (build with CGO_ENABLED=1)")

// Recognizer turns an encoded page image into raw word records.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]document.Word, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, image []byte) ([]document.Word, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, image []byte) ([]document.Word, error) {
	return f(ctx, image)
}

// RecognizeFile reads an image file and runs r on its contents.
func RecognizeFile(ctx context.Context, r Recognizer, path string) ([]document.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return r.Recognize(ctx, data)
}

type options struct {
	language       string // e.g. "eng", "eng+deu"
	pageSegMode    int    // 0-13
	tessdataPrefix string
}

func defaultOptions() options {
	return options{language: "eng", pageSegMode: 3}
}

// Option configures a Tesseract recognizer.
type Option func(*options)

// WithLanguage sets the Tesseract language code. Combine languages with "+".
func WithLanguage(lang string) Option {
	return func(o *options) {
		if lang != "" {
			o.language = lang
		}
	}
}

// WithPageSegMode sets the page segmentation mode. Values outside 0-13 keep
// the default of 3 (fully automatic).
func WithPageSegMode(mode int) Option {
	return func(o *options) {
		if mode < 0 || mode > 13 {
			return
		}
		o.pageSegMode = mode
	}
}

// WithTessdataPrefix sets the directory holding *.traineddata files.
func WithTessdataPrefix(dir string) Option {
	return func(o *options) {
		o.tessdataPrefix = dir
	}
}

// Info describes the OCR subsystem.
type Info struct {
	Available      bool   `json:"available"`
	Version        string `json:"version,omitempty"`
	Error          string `json:"error,omitempty"`
	Backend        string `json:"backend"`
	Language       string `json:"language"`
	PageSegMode    int    `json:"page_seg_mode"`
	TessdataPrefix string `json:"tessdata_prefix,omitempty"`
}
