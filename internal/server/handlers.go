package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ironsheep/pagetext-mcp/internal/convert"
	"github.com/ironsheep/pagetext-mcp/internal/document"
	"github.com/ironsheep/pagetext-mcp/internal/extract"
	"github.com/ironsheep/pagetext-mcp/internal/imaging"
	"github.com/ironsheep/pagetext-mcp/internal/linearize"
	"github.com/ironsheep/pagetext-mcp/internal/ocr"
	"github.com/ironsheep/pagetext-mcp/internal/raster"
	"github.com/ironsheep/pagetext-mcp/internal/sink"
)

// maxRenderScale bounds page_render requests.
const maxRenderScale = 8.0

var errNoSink = errors.New("no output sink is configured")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "document_extract", "page_ocr").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warnf("tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Documents
	case "document_info":
		return s.handleDocumentInfo(args)
	case "document_extract":
		return s.handleDocumentExtract(ctx, args)
	case "document_convert_markdown":
		return s.handleDocumentConvertMarkdown(ctx, args)

	// Pages
	case "page_render":
		return s.handlePageRender(ctx, args)
	case "page_ocr":
		return s.handlePageOCR(ctx, args)

	// Tokens and images
	case "tokens_linearize":
		return s.handleTokensLinearize(args)
	case "image_ocr_tokens":
		return s.handleImageOCRTokens(ctx, args)
	case "ocr_info":
		return s.handleOCRInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// save writes text through the configured sink and returns the record ID.
func (s *Server) save(ctx context.Context, source string, pages int, text, format string) (string, error) {
	if s.sink == nil {
		return "", errNoSink
	}
	rec := sink.NewRecord(source, pages, text, format)
	if err := s.sink.Write(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", source, err)
	}
	s.log.Infof("saved %s as %s record %s", source, format, rec.ID)
	return rec.ID, nil
}

type pathArgs struct {
	Path string `json:"path"`
}

func (a pathArgs) validate() error {
	if a.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// === Document Handlers ===

type documentInfoResult struct {
	*raster.Info
	NeedsOCR bool `json:"needs_ocr"`
}

func (s *Server) handleDocumentInfo(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	info, err := raster.Probe(a.Path)
	if err != nil {
		return nil, err
	}
	return &documentInfoResult{Info: info, NeedsOCR: !info.HasTextLayer}, nil
}

type documentExtractArgs struct {
	Path         string `json:"path"`
	MaxPages     *int   `json:"max_pages"`
	IncludePages bool   `json:"include_pages"`
	Save         bool   `json:"save"`
}

type documentExtractResult struct {
	Source    string   `json:"source"`
	Pages     int      `json:"pages"`
	Tokens    int      `json:"tokens"`
	Text      string   `json:"text"`
	PageTexts []string `json:"page_texts,omitempty"`
	RecordID  string   `json:"record_id,omitempty"`
}

func (s *Server) handleDocumentExtract(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a documentExtractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{Path: a.Path}).validate(); err != nil {
		return nil, err
	}
	if a.Save && s.sink == nil {
		return nil, errNoSink
	}

	extractor := s.extractor
	if a.MaxPages != nil {
		if *a.MaxPages < 0 {
			return nil, fmt.Errorf("max_pages must not be negative, got %d", *a.MaxPages)
		}
		extractor = s.newExtractor(extract.WithMaxPages(*a.MaxPages))
	}

	doc, err := extractor.Extract(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	pageTexts := linearize.PageTexts(doc)
	result := &documentExtractResult{
		Source: doc.Source,
		Pages:  len(doc.Pages),
		Tokens: doc.TokenCount(),
		Text:   linearize.Join(pageTexts),
	}
	if a.IncludePages {
		result.PageTexts = pageTexts
	}
	if a.Save {
		if result.RecordID, err = s.save(ctx, a.Path, result.Pages, result.Text, sink.FormatText); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type documentConvertArgs struct {
	Path string `json:"path"`
	Save bool   `json:"save"`
}

type documentConvertResult struct {
	Source   string `json:"source"`
	Markdown string `json:"markdown"`
	RecordID string `json:"record_id,omitempty"`
}

func (s *Server) handleDocumentConvertMarkdown(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a documentConvertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{Path: a.Path}).validate(); err != nil {
		return nil, err
	}
	if s.converter == nil {
		return nil, convert.ErrNotConfigured
	}
	if a.Save && s.sink == nil {
		return nil, errNoSink
	}

	md, err := s.converter.Convert(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	result := &documentConvertResult{Source: a.Path, Markdown: md}
	if a.Save {
		pages, err := s.pageCount(a.Path)
		if err != nil {
			return nil, err
		}
		if result.RecordID, err = s.save(ctx, a.Path, pages, md, sink.FormatMarkdown); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Server) pageCount(path string) (int, error) {
	doc, err := extract.OpenDocument(s.opener, path, extract.NoPageLimit)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.PageCount(), nil
}

// === Page Handlers ===

type pageRenderArgs struct {
	Path  string  `json:"path"`
	Page  int     `json:"page"`
	Scale float64 `json:"scale"`
}

type pageRenderResult struct {
	Page  int     `json:"page"`
	Scale float64 `json:"scale"`
	DPI   float64 `json:"dpi"`
	*imaging.EncodedImage
}

func (s *Server) handlePageRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pageRenderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{Path: a.Path}).validate(); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = s.cfg.Render.Scale
	}
	if a.Scale < 0 || a.Scale > maxRenderScale {
		return nil, fmt.Errorf("scale must be within (0, %v], got %v", maxRenderScale, a.Scale)
	}

	st, err := os.Stat(a.Path)
	if err != nil {
		return nil, err
	}
	if s.pages.Stamp(a.Path, st.ModTime()) {
		s.log.Debugf("%s changed, dropped its cached pages", a.Path)
	}

	key := imaging.PageKey{Path: a.Path, Page: a.Page, Scale: a.Scale}
	png, err := s.pages.Load(key, func() ([]byte, error) {
		doc, err := extract.OpenDocument(s.opener, a.Path, extract.NoPageLimit)
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		if err := raster.CheckPage(a.Page, doc.PageCount()); err != nil {
			return nil, err
		}
		return doc.RenderPNG(ctx, a.Page, a.Scale)
	})
	if err != nil {
		return nil, err
	}

	img, err := imaging.Base64PNG(png, 1.0)
	if err != nil {
		return nil, err
	}
	return &pageRenderResult{
		Page:         a.Page,
		Scale:        a.Scale,
		DPI:          raster.DPI(a.Scale),
		EncodedImage: img,
	}, nil
}

type pageOCRArgs struct {
	Path string `json:"path"`
	Page int    `json:"page"`
}

type pageOCRResult struct {
	Page    int              `json:"page"`
	Kept    int              `json:"kept"`
	Dropped int              `json:"dropped"`
	Tokens  []document.Token `json:"tokens"`
	Text    string           `json:"text"`
}

func (s *Server) handlePageOCR(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pageOCRArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{Path: a.Path}).validate(); err != nil {
		return nil, err
	}

	page, stats, err := s.extractor.ExtractPage(ctx, a.Path, a.Page)
	if err != nil {
		return nil, err
	}
	return &pageOCRResult{
		Page:    page.Number,
		Kept:    stats.Kept,
		Dropped: stats.Dropped,
		Tokens:  page.Tokens,
		Text:    linearize.Page(page),
	}, nil
}

// === Token and Image Handlers ===

type tokensLinearizeArgs struct {
	Tokens []struct {
		Text       string                `json:"text"`
		Confidence *float64              `json:"confidence"`
		Box        *document.BoundingBox `json:"box"`
	} `json:"tokens"`
	MinConfidence float64 `json:"min_confidence"`
}

type tokensLinearizeResult struct {
	Lines   []string `json:"lines"`
	Text    string   `json:"text"`
	Kept    int      `json:"kept"`
	Dropped int      `json:"dropped"`
}

func (s *Server) handleTokensLinearize(args json.RawMessage) (interface{}, error) {
	var a tokensLinearizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	tokens := make([]document.Token, 0, len(a.Tokens))
	dropped := 0
	for _, t := range a.Tokens {
		if t.Confidence != nil && !(*t.Confidence > a.MinConfidence) {
			dropped++
			continue
		}
		if t.Box == nil {
			tokens = append(tokens, document.Placeholder(t.Text))
			continue
		}
		tokens = append(tokens, document.NewToken(t.Text, document.NewBoundingBox(t.Box.X, t.Box.Y, t.Box.W, t.Box.H)))
	}

	page := document.Page{Tokens: tokens}
	return &tokensLinearizeResult{
		Lines:   linearize.Lines(tokens),
		Text:    linearize.Page(page),
		Kept:    len(tokens),
		Dropped: dropped,
	}, nil
}

type imageOCRTokensResult struct {
	Words []document.Word `json:"words"`
	Count int             `json:"count"`
	Text  string          `json:"text"`
}

func (s *Server) handleImageOCRTokens(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	words, err := ocr.RecognizeFile(ctx, s.recognizer, a.Path)
	if err != nil {
		return nil, err
	}
	page, _ := document.NewPage(0, words, document.WithMinConfidence(s.cfg.OCR.MinConfidence))
	return &imageOCRTokensResult{
		Words: words,
		Count: len(words),
		Text:  linearize.Page(page),
	}, nil
}

func (s *Server) handleOCRInfo() (interface{}, error) {
	info := ocr.GetInfo(
		ocr.WithLanguage(s.cfg.OCR.Language),
		ocr.WithPageSegMode(s.cfg.OCR.PageSegMode),
		ocr.WithTessdataPrefix(s.cfg.OCR.TessdataPrefix),
	)
	return &info, nil
}
