package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/pagetext-mcp/internal/app"
	"github.com/ironsheep/pagetext-mcp/internal/config"
	"github.com/ironsheep/pagetext-mcp/internal/logging"
	"github.com/ironsheep/pagetext-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := os.Getenv(config.EnvConfig)

	// Handle --version, --help and --config
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("pagetext-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("pagetext-mcp - MCP server for PDF text extraction")
			fmt.Println()
			fmt.Println("Usage: pagetext-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --config, -c FILE  Load settings from a YAML file")
			fmt.Println("  --version, -v      Print version information")
			fmt.Println("  --help, -h         Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Printf("  %s=FILE            Configuration file\n", config.EnvConfig)
			fmt.Printf("  %s=debug        Enable debug logging\n", config.EnvLogLevel)
			fmt.Printf("  %s=DIR    Tesseract language data\n", config.EnvTessdataPrefix)
			fmt.Printf("  %s=URL   Vision model endpoint\n", config.EnvConvertBaseURL)
			fmt.Printf("  %s=KEY    Vision model API key\n", config.EnvConvertAPIKey)
		fmt.Printf("  %s=HOST:PORT  Export metrics and traces over OTLP\n", config.EnvTelemetryEndpoint)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		case "--config", "-c":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "--config requires a file argument")
				os.Exit(2)
			}
			configPath = os.Args[2]
		default:
			fmt.Fprintf(os.Stderr, "unknown option %s (see --help)\n", os.Args[1])
			os.Exit(2)
		}
	}

	// Logging goes to stderr (stdout is for MCP protocol)
	log := logging.Named("main")
	defer logging.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.SetLevel(cfg.Log.Level)
	log.Debugf("pagetext-mcp %s (built %s, commit %s)", Version, BuildTime, GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer components.Close()

	opts := []server.Option{
		server.WithVersion(Version),
		server.WithMetrics(components.Metrics),
	}
	if components.Converter != nil {
		opts = append(opts, server.WithConverter(components.Converter))
	}
	if components.Sink != nil {
		opts = append(opts, server.WithSink(components.Sink))
	}

	// Unblock the stdin reader on shutdown.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	srv := server.New(cfg, components.Opener, components.Recognizer, opts...)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("server error: %v", err)
		components.Close()
		logging.Sync()
		os.Exit(1)
	}
}
