// Package convert turns documents into markdown with a vision language model
// served behind an OpenAI-compatible chat completions endpoint.
//
// Each page is rendered, sent as a base64 PNG together with a prompt, and the
// per-page answers are joined in page order.
package convert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/pagetext-mcp/internal/config"
	"github.com/ironsheep/pagetext-mcp/internal/extract"
	"github.com/ironsheep/pagetext-mcp/internal/imaging"
	"github.com/ironsheep/pagetext-mcp/internal/linearize"
	"github.com/ironsheep/pagetext-mcp/internal/logging"
	"github.com/ironsheep/pagetext-mcp/internal/raster"
)

// StageConvert is the PageError stage for a failed model call.
const StageConvert = "convert"

// ErrNotConfigured is returned when no endpoint or model is set.
var ErrNotConfigured = errors.New("markdown conversion is not configured")

// Converter turns the document at path into markdown.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Options configures a VLMConverter.
type Options struct {
	BaseURL     string
	Model       string
	APIKey      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	Concurrency int
	Scale       float64
	// MaxPages follows the configuration convention: zero disables the cap.
	MaxPages int

	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

// OptionsFromConfig maps the convert section of the configuration.
func OptionsFromConfig(c config.Convert, maxPages int) Options {
	return Options{
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		APIKey:      c.APIKey,
		Prompt:      c.Prompt,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
		MaxRetries:  c.MaxRetries,
		Concurrency: c.Concurrency,
		Scale:       c.Scale,
		MaxPages:    maxPages,
	}
}

// VLMConverter sends rendered pages to a vision model.
type VLMConverter struct {
	client openai.Client
	opener raster.Opener
	opts   Options
}

// NewVLMConverter creates a converter. BaseURL and Model are required.
func NewVLMConverter(opener raster.Opener, opts Options) (*VLMConverter, error) {
	if opts.BaseURL == "" || opts.Model == "" {
		return nil, ErrNotConfigured
	}
	if opts.Prompt == "" {
		opts.Prompt = config.DefaultPrompt
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Scale <= 0 {
		opts.Scale = raster.DefaultScale
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("convert")
	}

	baseURL := opts.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	clientOpts := []openaiopt.RequestOption{
		openaiopt.WithBaseURL(baseURL),
		openaiopt.WithMaxRetries(opts.MaxRetries),
	}
	// Local model servers usually ignore the key but the client requires one.
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = "EMPTY"
	}
	clientOpts = append(clientOpts, openaiopt.WithAPIKey(apiKey))
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, openaiopt.WithRequestTimeout(opts.Timeout))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(opts.HTTPClient))
	}

	return &VLMConverter{
		client: openai.NewClient(clientOpts...),
		opener: opener,
		opts:   opts,
	}, nil
}

// Convert renders every page of the document at path, converts each one and
// joins the results in page order. The page cap and failure semantics match
// extract.Extractor.
func (c *VLMConverter) Convert(ctx context.Context, path string) (string, error) {
	doc, err := extract.OpenDocument(c.opener, path, extract.PageLimitFromConfig(c.opts.MaxPages))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	n := doc.PageCount()
	start := time.Now()
	pages := make([]string, n)
	errs := make([]error, n)

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	convertPage := func(i int) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		png, err := doc.RenderPNG(ctx, i, c.opts.Scale)
		if err != nil {
			errs[i] = &extract.PageError{Page: i, Stage: extract.StageRender, Err: err}
			cancel()
			return
		}
		md, err := c.ConvertImage(ctx, png)
		if err != nil {
			errs[i] = &extract.PageError{Page: i, Stage: StageConvert, Err: err}
			cancel()
			return
		}
		pages[i] = md
	}

	if c.opts.Concurrency == 1 || n < 2 {
		for i := 0; i < n && ctx.Err() == nil; i++ {
			convertPage(i)
		}
	} else {
		pool, err := ants.NewPool(c.opts.Concurrency)
		if err != nil {
			return "", fmt.Errorf("failed to create conversion worker pool: %w", err)
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i := 0; i < n && ctx.Err() == nil; i++ {
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				convertPage(i)
			}); err != nil {
				wg.Done()
				errs[i] = err
				cancel()
			}
		}
		wg.Wait()
	}

	if err := parent.Err(); err != nil {
		return "", err
	}
	if err := firstError(errs); err != nil {
		c.opts.Logger.Warnf("conversion of %s failed: %v", path, err)
		return "", err
	}
	c.opts.Logger.Infof("converted %s: %d pages in %s", path, n, time.Since(start).Round(time.Millisecond))
	return linearize.Join(pages), nil
}

// firstError returns the lowest-index error that is not an interruption
// caused by an earlier failure.
func firstError(errs []error) error {
	var interrupted error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if interrupted == nil {
				interrupted = err
			}
			continue
		}
		return err
	}
	return interrupted
}

// ConvertImage sends one PNG page image to the model and returns its markdown.
func (c *VLMConverter) ConvertImage(ctx context.Context, png []byte) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						{
							OfImageURL: &openai.ChatCompletionContentPartImageParam{
								ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
									URL: imaging.DataURL(png),
								},
							},
						},
						{
							OfText: &openai.ChatCompletionContentPartTextParam{
								Text: c.opts.Prompt,
							},
						},
					},
				},
			},
		}},
		Temperature: openai.Float(c.opts.Temperature),
	}
	if c.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.opts.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params,
		openaiopt.WithJSONSet("skip_special_tokens", false))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return cleanMarkdown(resp.Choices[0].Message.Content), nil
}

// cleanMarkdown trims the answer and removes one fence wrapping the whole
// answer, which some models add.
func cleanMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	return strings.TrimSpace(body[nl+1:])
}
