// Package server implements the MCP (Model Context Protocol) server for PDF
// text extraction.
//
// The server exposes the extraction pipeline to MCP clients: pages are
// rendered to images, recognized with OCR, and the resulting word tokens are
// linearized into reading-order text.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Documents:
//   - document_info: Page count, file size and text layer presence
//   - document_extract: OCR every page and return the document text
//   - document_convert_markdown: Convert pages with a vision model service
//
// Pages:
//   - page_render: Render one page as base64 PNG
//   - page_ocr: Tokens and text of one page
//
// Tokens and images:
//   - tokens_linearize: Linearize caller-supplied tokens
//   - image_ocr_tokens: Raw OCR word records of an image file
//   - ocr_info: OCR engine availability
//
// Page indices are zero-based. Rendered pages are cached by path, page and
// scale for the lifetime of the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(cfg, raster.FitzOpener{}, recognizer,
//	    server.WithSink(out),
//	    server.WithVersion(Version),
//	)
//	if err := srv.Run(ctx); err != nil {
//	    logging.Default.Fatalf("server error: %v", err)
//	}
package server
