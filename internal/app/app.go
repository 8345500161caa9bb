// Package app assembles the extraction pipeline from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/pagetext-mcp/internal/config"
	"github.com/ironsheep/pagetext-mcp/internal/convert"
	"github.com/ironsheep/pagetext-mcp/internal/document"
	"github.com/ironsheep/pagetext-mcp/internal/extract"
	"github.com/ironsheep/pagetext-mcp/internal/logging"
	"github.com/ironsheep/pagetext-mcp/internal/ocr"
	"github.com/ironsheep/pagetext-mcp/internal/raster"
	"github.com/ironsheep/pagetext-mcp/internal/sink"
	"github.com/ironsheep/pagetext-mcp/internal/telemetry"
)

// shutdownTimeout bounds the final telemetry flush in Close.
const shutdownTimeout = 5 * time.Second

// Components are the collaborators built from one configuration.
type Components struct {
	Config *config.Config
	Opener raster.Opener

	// Recognizer is never nil. When the OCR engine failed to start it
	// returns OCRErr from every call.
	Recognizer ocr.Recognizer
	OCRErr     error

	// Converter is nil unless a conversion endpoint is configured.
	Converter convert.Converter

	// Sink is nil unless at least one output is configured.
	Sink sink.Sink

	// Metrics exports over OTLP when telemetry is enabled and records into
	// the global no-op providers otherwise.
	Metrics *telemetry.Metrics

	log     *zap.SugaredLogger
	closers []func() error
}

// Build creates the components described by cfg. Sinks are opened eagerly so
// a bad output path fails here rather than after a long extraction.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{
		Config: cfg,
		Opener: raster.FitzOpener{},
		log:    logging.Named("app"),
	}

	if err := c.startTelemetry(ctx); err != nil {
		return nil, err
	}

	tess, err := ocr.NewTesseract(
		ocr.WithLanguage(cfg.OCR.Language),
		ocr.WithPageSegMode(cfg.OCR.PageSegMode),
		ocr.WithTessdataPrefix(cfg.OCR.TessdataPrefix),
	)
	if err != nil {
		c.OCRErr = fmt.Errorf("ocr unavailable: %w", err)
		c.log.Warnf("%v", c.OCRErr)
		ocrErr := c.OCRErr
		c.Recognizer = ocr.RecognizerFunc(func(context.Context, []byte) ([]document.Word, error) {
			return nil, ocrErr
		})
	} else {
		c.Recognizer = tess
		c.closers = append(c.closers, tess.Close)
	}

	if err := c.openSinks(ctx); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Convert.Enabled() {
		conv, err := convert.NewVLMConverter(c.Opener, convert.OptionsFromConfig(cfg.Convert, cfg.Extract.MaxPages))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Converter = conv
		c.log.Infof("markdown conversion via %s (model %s)", cfg.Convert.BaseURL, cfg.Convert.Model)
	}
	return c, nil
}

func (c *Components) startTelemetry(ctx context.Context) error {
	t := c.Config.Telemetry
	if !t.Enabled {
		c.Metrics = telemetry.Default()
		return nil
	}
	p, err := telemetry.NewProvider(ctx,
		telemetry.WithEndpoint(t.Endpoint),
		telemetry.WithProtocol(t.Protocol),
		telemetry.WithInterval(t.Interval),
		telemetry.WithServiceName(t.ServiceName),
	)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	c.Metrics = p.Metrics()
	c.closers = append(c.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return p.Shutdown(ctx)
	})
	endpoint := t.Endpoint
	if endpoint == "" {
		endpoint = "the OTEL_EXPORTER_OTLP_ENDPOINT default"
	}
	c.log.Infof("exporting telemetry over OTLP/%s to %s", t.Protocol, endpoint)
	return nil
}

func (c *Components) openSinks(ctx context.Context) error {
	var sinks sink.Multi
	if dir := c.Config.Output.Dir; dir != "" {
		sinks = append(sinks, sink.NewDirSink(dir))
		c.log.Infof("writing text files to %s", dir)
	}
	if path := c.Config.Output.SQLite; path != "" {
		db, err := sink.OpenSQLite(ctx, path)
		if err != nil {
			return err
		}
		sinks = append(sinks, db)
		c.log.Infof("writing records to %s", path)
	}

	switch len(sinks) {
	case 0:
	case 1:
		c.Sink = sinks[0]
	default:
		c.Sink = sinks
	}
	if c.Sink != nil {
		c.closers = append(c.closers, c.Sink.Close)
	}
	return nil
}

// Extractor returns an extractor configured from the components' settings.
// Extra options are applied last.
func (c *Components) Extractor(opts ...extract.Option) *extract.Extractor {
	all := append(extract.OptionsFromConfig(c.Config), extract.WithMetrics(c.Metrics))
	all = append(all, opts...)
	return extract.New(c.Opener, c.Recognizer, all...)
}

// Close releases the recognizer and the sinks, then flushes telemetry.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
