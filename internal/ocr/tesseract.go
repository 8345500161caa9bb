//go:build cgo

package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/pagetext-mcp/internal/document"
)

// Tesseract recognizes words with a pool of gosseract clients.
type Tesseract struct {
	opts options
	pool *sync.Pool
}

// NewTesseract creates a recognizer after checking the settings against one
// throwaway client.
func NewTesseract(opts ...Option) (*Tesseract, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	probe := gosseract.NewClient()
	err := configure(probe, o)
	probe.Close()
	if err != nil {
		return nil, err
	}

	t := &Tesseract{opts: o}
	t.pool = &sync.Pool{
		New: func() any {
			client := gosseract.NewClient()
			_ = configure(client, o) // validated above
			return client
		},
	}
	return t, nil
}

func configure(client *gosseract.Client, o options) error {
	if o.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(o.tessdataPrefix); err != nil {
			return fmt.Errorf("failed to set tessdata prefix %q: %w", o.tessdataPrefix, err)
		}
	}
	if err := client.SetLanguage(strings.Split(o.language, "+")...); err != nil {
		return fmt.Errorf("failed to set language %q: %w", o.language, err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(o.pageSegMode)); err != nil {
		return fmt.Errorf("failed to set page segmentation mode %d: %w", o.pageSegMode, err)
	}
	return nil
}

// Recognize runs word-level recognition on an encoded image. The call returns
// early when ctx is done; the engine finishes in the background and its
// client goes back to the pool afterwards.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) ([]document.Word, error) {
	if t == nil || t.pool == nil {
		return nil, errors.New("tesseract recognizer is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		words []document.Word
		err   error
	}
	resultCh := make(chan result, 1)
	pool := t.pool

	go func() {
		client := pool.Get().(*gosseract.Client)
		defer pool.Put(client)
		words, err := recognize(client, image)
		resultCh <- result{words, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.words, res.err
	}
}

func recognize(client *gosseract.Client, image []byte) ([]document.Word, error) {
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]document.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, document.Word{
			Text:       b.Word,
			Confidence: float64(b.Confidence),
			Left:       float64(b.Box.Min.X),
			Top:        float64(b.Box.Min.Y),
			Width:      float64(b.Box.Dx()),
			Height:     float64(b.Box.Dy()),
		})
	}
	return words, nil
}

// Close drops the client pool. Callers must not have Recognize calls in
// flight.
func (t *Tesseract) Close() error {
	if t != nil {
		t.pool = nil
	}
	return nil
}

// GetInfo reports whether Tesseract can be initialized with opts.
func GetInfo(opts ...Option) Info {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	info := Info{
		Backend:        "gosseract",
		Language:       o.language,
		PageSegMode:    o.pageSegMode,
		TessdataPrefix: o.tessdataPrefix,
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := configure(client, o); err != nil {
		info.Error = err.Error()
		return info
	}
	info.Version = client.Version()
	info.Available = info.Version != ""
	return info
}
