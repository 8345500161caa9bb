// Command pagetext extracts the text of PDF documents in batch and writes it
// through the configured output sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/pagetext-mcp/internal/app"
	"github.com/ironsheep/pagetext-mcp/internal/config"
	"github.com/ironsheep/pagetext-mcp/internal/convert"
	"github.com/ironsheep/pagetext-mcp/internal/extract"
	"github.com/ironsheep/pagetext-mcp/internal/logging"
	"github.com/ironsheep/pagetext-mcp/internal/raster"
	"github.com/ironsheep/pagetext-mcp/internal/sink"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv(config.EnvConfig), "YAML configuration file")
		maxPages    = flag.Int("max-pages", -1, "Skip documents with more pages (0 = no limit, -1 = from config)")
		concurrency = flag.Int("concurrency", 0, "Pages processed at once (0 = from config)")
		outDir      = flag.String("out", "", "Directory for extracted text files")
		sqlitePath  = flag.String("sqlite", "", "SQLite database for extracted records")
		markdown    = flag.Bool("markdown", false, "Convert with the configured vision model instead of OCR")
		version     = flag.Bool("version", false, "Print version information")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pagetext [options] <pdf files or directories...>\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("pagetext %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := logging.Named("pagetext")
	defer logging.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *maxPages >= 0 {
		cfg.Extract.MaxPages = *maxPages
	}
	if *concurrency > 0 {
		cfg.Extract.Concurrency = *concurrency
		cfg.Convert.Concurrency = *concurrency
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *sqlitePath != "" {
		cfg.Output.SQLite = *sqlitePath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.SetLevel(cfg.Log.Level)

	files, err := collectPDFs(flag.Args())
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(files) == 0 {
		log.Warnf("no PDF documents found")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer components.Close()

	if components.Sink == nil {
		log.Warnf("no output configured, results are only logged (use -out or -sqlite)")
	}

	var (
		fn     processFunc
		format = sink.FormatText
	)
	if *markdown {
		if components.Converter == nil {
			log.Fatalf("%v: set convert.base_url and convert.model", convert.ErrNotConfigured)
		}
		fn = convertFunc(components.Converter, components.Opener)
		format = sink.FormatMarkdown
	} else {
		if components.OCRErr != nil {
			log.Fatalf("%v", components.OCRErr)
		}
		fn = extractFunc(components.Extractor())
	}

	s := processAll(ctx, files, fn, format, components.Sink, log)
	log.Infof("done: %d written, %d skipped, %d failed", s.written, s.skipped, s.failed)
	if s.failed > 0 {
		components.Close()
		logging.Sync()
		os.Exit(1)
	}
}

// processFunc turns one document into text and reports its page count.
type processFunc func(ctx context.Context, path string) (text string, pages int, err error)

func extractFunc(e *extract.Extractor) processFunc {
	return func(ctx context.Context, path string) (string, int, error) {
		text, doc, err := e.ExtractText(ctx, path)
		if err != nil {
			return "", 0, err
		}
		return text, len(doc.Pages), nil
	}
}

func convertFunc(c convert.Converter, opener raster.Opener) processFunc {
	return func(ctx context.Context, path string) (string, int, error) {
		md, err := c.Convert(ctx, path)
		if err != nil {
			return "", 0, err
		}
		doc, err := extract.OpenDocument(opener, path, extract.NoPageLimit)
		if err != nil {
			return "", 0, err
		}
		defer doc.Close()
		return md, doc.PageCount(), nil
	}
}

type summary struct {
	written int
	skipped int
	failed  int
}

// processAll handles files in order. Documents over the page limit are
// skipped with a warning; other failures are counted and processing
// continues until ctx is done.
func processAll(ctx context.Context, files []string, fn processFunc, format string, out sink.Sink, log *zap.SugaredLogger) summary {
	var s summary
	for i, path := range files {
		if ctx.Err() != nil {
			log.Warnf("interrupted, %d documents not processed", len(files)-i)
			s.failed += len(files) - i
			break
		}

		start := time.Now()
		text, pages, err := fn(ctx, path)
		switch {
		case errors.Is(err, extract.ErrPageLimitExceeded):
			log.Warnf("skipping %s: %v", path, err)
			s.skipped++
			continue
		case err != nil:
			log.Errorf("failed %s: %v", path, err)
			s.failed++
			continue
		}

		if out != nil {
			rec := sink.NewRecord(path, pages, text, format)
			if err := out.Write(ctx, rec); err != nil {
				log.Errorf("failed to write %s: %v", path, err)
				s.failed++
				continue
			}
		}
		s.written++
		log.Infof("[%d/%d] %s: %d pages, %d chars in %s",
			i+1, len(files), path, pages, len(text), time.Since(start).Round(time.Millisecond))
	}
	return s
}

// collectPDFs expands directories into the .pdf files below them. Explicit
// file arguments are kept whatever their extension so the format check can
// report them. The result is sorted and free of duplicates.
func collectPDFs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
