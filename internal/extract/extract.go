// Package extract drives document extraction: render each page, optionally
// preprocess it, recognize words and filter them into a document.Document.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/pagetext-mcp/internal/config"
	"github.com/ironsheep/pagetext-mcp/internal/document"
	"github.com/ironsheep/pagetext-mcp/internal/imaging"
	"github.com/ironsheep/pagetext-mcp/internal/linearize"
	"github.com/ironsheep/pagetext-mcp/internal/logging"
	"github.com/ironsheep/pagetext-mcp/internal/ocr"
	"github.com/ironsheep/pagetext-mcp/internal/raster"
	"github.com/ironsheep/pagetext-mcp/internal/telemetry"
)

type options struct {
	scale         float64
	maxPages      int
	concurrency   int
	minConfidence float64
	preprocess    imaging.PreprocessOptions
	logger        *zap.SugaredLogger
	metrics       *telemetry.Metrics
}

// Option configures an Extractor.
type Option func(*options)

// WithScale sets the render upscale factor. The default is 2 (144 DPI).
func WithScale(scale float64) Option {
	return func(o *options) {
		if scale > 0 {
			o.scale = scale
		}
	}
}

// NoPageLimit disables the page cap.
const NoPageLimit = -1

// WithMaxPages rejects documents with more than n pages. A cap of zero
// rejects every document with pages; a negative n disables the cap.
func WithMaxPages(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = NoPageLimit
		}
		o.maxPages = n
	}
}

// PageLimitFromConfig maps a configured page cap, where zero means no cap,
// to the form WithMaxPages and OpenDocument take.
func PageLimitFromConfig(n int) int {
	if n <= 0 {
		return NoPageLimit
	}
	return n
}

// WithConcurrency sets how many pages are processed at once. The default of
// one processes pages strictly in sequence.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.concurrency = n
		}
	}
}

// WithMinConfidence sets the confidence a word must exceed to be kept.
func WithMinConfidence(threshold float64) Option {
	return func(o *options) {
		o.minConfidence = threshold
	}
}

// WithPreprocess enables page image preprocessing before recognition.
func WithPreprocess(p imaging.PreprocessOptions) Option {
	return func(o *options) {
		o.preprocess = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the telemetry instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// OptionsFromConfig maps the render, ocr, extract and preprocess sections of
// the configuration.
func OptionsFromConfig(c *config.Config) []Option {
	return []Option{
		WithScale(c.Render.Scale),
		WithMaxPages(PageLimitFromConfig(c.Extract.MaxPages)),
		WithConcurrency(c.Extract.Concurrency),
		WithMinConfidence(c.OCR.MinConfidence),
		WithPreprocess(imaging.PreprocessOptions{
			Grayscale:     c.Preprocess.Grayscale,
			Contrast:      c.Preprocess.Contrast,
			Threshold:     c.Preprocess.Threshold,
			SkipBlank:     c.Preprocess.SkipBlank,
			BlankCoverage: c.Preprocess.BlankCoverage,
		}),
	}
}

// Extractor turns documents into token pages.
type Extractor struct {
	opener     raster.Opener
	recognizer ocr.Recognizer
	opts       options
}

// New creates an Extractor.
func New(opener raster.Opener, recognizer ocr.Recognizer, opts ...Option) *Extractor {
	o := options{
		scale:       raster.DefaultScale,
		maxPages:    NoPageLimit,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Named("extract")
	}
	if o.metrics == nil {
		o.metrics = telemetry.Default()
	}
	return &Extractor{opener: opener, recognizer: recognizer, opts: o}
}

// OpenDocument checks the format of path, opens it and enforces the page cap.
// A negative maxPages (NoPageLimit) disables the cap.
func OpenDocument(opener raster.Opener, path string, maxPages int) (raster.Document, error) {
	if err := raster.CheckFormat(path); err != nil {
		return nil, err
	}
	doc, err := opener.Open(path)
	if err != nil {
		if errors.Is(err, ErrUnrecognizedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnrecognizedFormat, path, err)
	}
	if n := doc.PageCount(); maxPages >= 0 && n > maxPages {
		doc.Close()
		return nil, fmt.Errorf("%w: %s has %d pages, limit is %d", ErrPageLimitExceeded, path, n, maxPages)
	}
	return doc, nil
}

// Extract processes every page of the document at path in page order.
//
// Any page failure aborts the extraction and no partial document is returned.
// With concurrency above one the reported failure is the one with the lowest
// page index.
func (e *Extractor) Extract(ctx context.Context, path string) (doc *document.Document, err error) {
	ctx, span := e.opts.metrics.StartDocument(ctx, path)
	defer func() {
		e.opts.metrics.RecordDocument(ctx, err)
		telemetry.EndSpan(span, err)
	}()

	src, err := OpenDocument(e.opener, path, e.opts.maxPages)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	n := src.PageCount()
	start := time.Now()
	e.opts.logger.Debugf("extracting %s: %d pages, concurrency %d", path, n, e.opts.concurrency)

	var pages []document.Page
	if e.opts.concurrency > 1 && n > 1 {
		pages, err = e.extractConcurrent(ctx, src, n)
	} else {
		pages, err = e.extractSequential(ctx, src, n)
	}
	if err != nil {
		e.opts.logger.Warnf("extraction of %s failed: %v", path, err)
		return nil, err
	}

	doc = &document.Document{Source: path, Pages: pages}
	e.opts.logger.Infof("extracted %s: %d pages, %d tokens in %s",
		path, n, doc.TokenCount(), time.Since(start).Round(time.Millisecond))
	return doc, nil
}

// ExtractText extracts the document at path and linearizes it.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, *document.Document, error) {
	doc, err := e.Extract(ctx, path)
	if err != nil {
		return "", nil, err
	}
	return linearize.Document(doc), doc, nil
}

// ExtractPage processes a single zero-based page. The page cap does not
// apply.
func (e *Extractor) ExtractPage(ctx context.Context, path string, index int) (document.Page, document.FilterStats, error) {
	src, err := OpenDocument(e.opener, path, NoPageLimit)
	if err != nil {
		return document.Page{}, document.FilterStats{}, err
	}
	defer src.Close()

	if err := raster.CheckPage(index, src.PageCount()); err != nil {
		return document.Page{}, document.FilterStats{}, err
	}
	return e.processPage(ctx, src, index)
}

func (e *Extractor) extractSequential(ctx context.Context, src raster.Document, n int) ([]document.Page, error) {
	pages := make([]document.Page, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, _, err := e.processPage(ctx, src, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (e *Extractor) extractConcurrent(parent context.Context, src raster.Document, n int) ([]document.Page, error) {
	pool, err := ants.NewPool(e.opts.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create page worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pages := make([]document.Page, n)
	errs := make([]error, n)
	var wg sync.WaitGroup

	for i := 0; i < n && ctx.Err() == nil; i++ {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			page, _, err := e.processPage(ctx, src, i)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			pages[i] = page
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("failed to schedule page %d: %w", i, err)
			cancel()
		}
	}
	wg.Wait()

	if err := parent.Err(); err != nil {
		return nil, err
	}
	// Pages interrupted by the cancel below a real failure are not failures of
	// their own.
	var interrupted error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if interrupted == nil {
				interrupted = err
			}
			continue
		}
		return nil, err
	}
	if interrupted != nil {
		return nil, interrupted
	}
	return pages, nil
}

// processPage renders, preprocesses, recognizes and filters one page.
func (e *Extractor) processPage(ctx context.Context, src raster.Document, index int) (page document.Page, stats document.FilterStats, err error) {
	start := time.Now()
	ctx, span := e.opts.metrics.StartPage(ctx, index)
	var stage string
	var blank bool
	defer func() {
		e.opts.metrics.RecordPage(ctx, stats, blank, time.Since(start), stage, err)
		telemetry.EndSpan(span, err)
	}()

	fail := func(s string, cause error) error {
		stage = s
		return &PageError{Page: index, Stage: s, Err: cause}
	}

	img, rerr := src.RenderPNG(ctx, index, e.opts.scale)
	if rerr != nil {
		return document.Page{}, stats, fail(StageRender, rerr)
	}

	if e.opts.preprocess.Enabled() {
		res, perr := imaging.Preprocess(img, e.opts.preprocess)
		if perr != nil {
			return document.Page{}, stats, fail(StagePreprocess, perr)
		}
		if res.Blank {
			blank = true
			e.opts.logger.Debugf("page %d is blank (ink coverage %.4f), skipping recognition", index, res.Coverage)
			return document.Page{Number: index, Tokens: []document.Token{}}, stats, nil
		}
		img = res.Image
	}

	words, oerr := e.recognizer.Recognize(ctx, img)
	if oerr != nil {
		return document.Page{}, stats, fail(StageRecognize, oerr)
	}

	page, stats = document.NewPage(index, words, document.WithMinConfidence(e.opts.minConfidence))
	e.opts.logger.Debugf("page %d: kept %d words, dropped %d", index, stats.Kept, stats.Dropped)
	return page, stats, nil
}
