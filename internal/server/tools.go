package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the PDF document",
}

var pageProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Zero-based page index",
	"minimum":     0,
}

var saveProperty = map[string]interface{}{
	"type":        "boolean",
	"description": "Write the result through the configured output sinks (default: false)",
	"default":     false,
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Documents
		{
			Name:        "document_info",
			Description: "Get the page count and file size of a PDF and whether it carries an embedded text layer. Documents without one are scanned and need OCR.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_extract",
			Description: "Render every page of a PDF, recognize its words with OCR and return the text in reading order. Pages are separated by one blank line.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"max_pages": map[string]interface{}{
						"type":        "integer",
						"description": "Reject documents with more pages than this (default: configured value)",
						"minimum":     0,
					},
					"include_pages": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the text of each page (default: false)",
						"default":     false,
					},
					"save": saveProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_convert_markdown",
			Description: "Convert a PDF to markdown with the configured vision model service, one request per page.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"save": saveProperty,
				},
				"required": []string{"path"},
			},
		},

		// Pages
		{
			Name:        "page_render",
			Description: "Render one page of a PDF and return it as a base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"page": pageProperty,
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Upscale factor over 72 DPI (default: configured render scale, 2.0 = 144 DPI)",
						"minimum":     0.1,
						"maximum":     8.0,
					},
				},
				"required": []string{"path", "page"},
			},
		},
		{
			Name:        "page_ocr",
			Description: "Run OCR on one page of a PDF. Returns the kept word tokens with pixel bounding boxes and the linearized page text.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"page": pageProperty,
				},
				"required": []string{"path", "page"},
			},
		},

		// Tokens and images
		{
			Name:        "tokens_linearize",
			Description: "Group positioned word tokens into lines by vertical band and join them into page text. Tokens must be in recognizer emission order. Tokens without a box join the current line.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tokens": map[string]interface{}{
						"type":        "array",
						"description": "Tokens in emission order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"text": map[string]interface{}{"type": "string"},
								"confidence": map[string]interface{}{
									"type":        "number",
									"description": "Tokens with a confidence at or below min_confidence are dropped",
								},
								"box": map[string]interface{}{
									"type": "object",
									"properties": map[string]interface{}{
										"x": map[string]interface{}{"type": "number"},
										"y": map[string]interface{}{"type": "number"},
										"w": map[string]interface{}{"type": "number"},
										"h": map[string]interface{}{"type": "number"},
									},
									"required": []string{"x", "y", "w", "h"},
								},
							},
							"required": []string{"text"},
						},
					},
					"min_confidence": map[string]interface{}{
						"type":        "number",
						"description": "Confidence threshold for tokens that carry one (default: 0)",
						"default":     0,
					},
				},
				"required": []string{"tokens"},
			},
		},
		{
			Name:        "image_ocr_tokens",
			Description: "Run OCR on an image file and return the raw word records with confidence and bounding boxes, plus the linearized text.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_info",
			Description: "Report whether the Tesseract OCR engine is available and how it is configured.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
