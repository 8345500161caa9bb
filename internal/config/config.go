// Package config loads pagetext settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables. EnvConfig names the configuration file; the others
// override file settings.
const (
	EnvConfig         = "PAGETEXT_CONFIG"
	EnvLogLevel       = "PAGETEXT_LOG_LEVEL"
	EnvTessdataPrefix = "PAGETEXT_TESSDATA_PREFIX"
	EnvConvertBaseURL = "PAGETEXT_CONVERT_BASE_URL"
	EnvConvertAPIKey  = "PAGETEXT_CONVERT_API_KEY"

	// EnvTelemetryEndpoint sets telemetry.endpoint and turns export on.
	EnvTelemetryEndpoint = "PAGETEXT_TELEMETRY_ENDPOINT"
)

// DefaultPrompt asks a vision model to transcribe one page.
const DefaultPrompt = "Convert this page to markdown. Output only the page content."

// Config is the full settings tree.
type Config struct {
	Log        Log        `yaml:"log"`
	Render     Render     `yaml:"render"`
	OCR        OCR        `yaml:"ocr"`
	Extract    Extract    `yaml:"extract"`
	Preprocess Preprocess `yaml:"preprocess"`
	Output     Output     `yaml:"output"`
	Convert    Convert    `yaml:"convert"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// Log settings.
type Log struct {
	Level string `yaml:"level"`
}

// Render settings for the raster provider.
type Render struct {
	// Scale is the upscale factor applied to the page's native 72 DPI size.
	Scale float64 `yaml:"scale"`
}

// OCR settings for the token recognizer and the confidence filter.
type OCR struct {
	Language       string  `yaml:"language"`
	PageSegMode    int     `yaml:"page_seg_mode"`
	TessdataPrefix string  `yaml:"tessdata_prefix"`
	MinConfidence  float64 `yaml:"min_confidence"`
}

// Extract settings for the document driver.
type Extract struct {
	// MaxPages rejects documents with more pages. Zero disables the cap.
	MaxPages int `yaml:"max_pages"`
	// Concurrency is the number of pages processed at once. One keeps the
	// strictly sequential behavior.
	Concurrency int `yaml:"concurrency"`
}

// Preprocess settings applied to each rendered page before recognition.
type Preprocess struct {
	Grayscale bool    `yaml:"grayscale"`
	Contrast  float64 `yaml:"contrast"`
	Threshold uint8   `yaml:"threshold"`
	SkipBlank bool    `yaml:"skip_blank"`
	// BlankCoverage is the ink fraction at or below which a page is blank.
	BlankCoverage float64 `yaml:"blank_coverage"`
}

// Output sinks. Empty values disable a sink.
type Output struct {
	Dir    string `yaml:"dir"`
	SQLite string `yaml:"sqlite"`
}

// Convert settings for the vision-model markdown converter.
type Convert struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Prompt      string        `yaml:"prompt"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Concurrency int           `yaml:"concurrency"`
	Scale       float64       `yaml:"scale"`
}

// Telemetry settings for OTLP export of metrics and spans.
type Telemetry struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the collector host:port. Empty defers to the standard
	// OTEL_EXPORTER_OTLP_ENDPOINT variable.
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"`
	ServiceName string `yaml:"service_name"`
	// Interval between metric exports. Zero keeps the SDK default.
	Interval time.Duration `yaml:"interval"`
}

// Enabled reports whether a conversion endpoint is configured.
func (c Convert) Enabled() bool {
	return c.BaseURL != "" && c.Model != ""
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log:    Log{Level: "info"},
		Render: Render{Scale: 2.0},
		OCR: OCR{
			Language:    "eng",
			PageSegMode: 3,
		},
		Extract: Extract{Concurrency: 1},
		Preprocess: Preprocess{
			BlankCoverage: 0.001,
		},
		Convert: Convert{
			Prompt:      DefaultPrompt,
			MaxTokens:   4096,
			Timeout:     90 * time.Second,
			MaxRetries:  2,
			Concurrency: 1,
			Scale:       2.0,
		},
		Telemetry: Telemetry{
			Protocol:    "grpc",
			ServiceName: "pagetext",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the process environment.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvTessdataPrefix); ok && v != "" {
		c.OCR.TessdataPrefix = v
	}
	if v, ok := os.LookupEnv(EnvConvertBaseURL); ok && v != "" {
		c.Convert.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvConvertAPIKey); ok && v != "" {
		c.Convert.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvTelemetryEndpoint); ok && v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Render.Scale <= 0 {
		errs = append(errs, fmt.Errorf("render.scale must be positive, got %v", c.Render.Scale))
	}
	if c.OCR.PageSegMode < 0 || c.OCR.PageSegMode > 13 {
		errs = append(errs, fmt.Errorf("ocr.page_seg_mode must be 0-13, got %d", c.OCR.PageSegMode))
	}
	if c.Extract.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("extract.max_pages must not be negative, got %d", c.Extract.MaxPages))
	}
	if c.Extract.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("extract.concurrency must be at least 1, got %d", c.Extract.Concurrency))
	}
	if c.Preprocess.BlankCoverage < 0 || c.Preprocess.BlankCoverage > 1 {
		errs = append(errs, fmt.Errorf("preprocess.blank_coverage must be within [0, 1], got %v", c.Preprocess.BlankCoverage))
	}
	if c.Convert.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("convert.concurrency must be at least 1, got %d", c.Convert.Concurrency))
	}
	if c.Convert.Scale <= 0 {
		errs = append(errs, fmt.Errorf("convert.scale must be positive, got %v", c.Convert.Scale))
	}
	if c.Convert.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("convert.max_retries must not be negative, got %d", c.Convert.MaxRetries))
	}
	if c.Convert.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("convert.max_tokens must not be negative, got %d", c.Convert.MaxTokens))
	}
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
	}
	if c.Telemetry.Interval < 0 {
		errs = append(errs, fmt.Errorf("telemetry.interval must not be negative, got %v", c.Telemetry.Interval))
	}
	return errors.Join(errs...)
}
