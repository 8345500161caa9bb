package extract

import (
	"errors"
	"fmt"

	"github.com/ironsheep/pagetext-mcp/internal/raster"
)

var (
	// ErrPageLimitExceeded is returned when a document has more pages than
	// the configured cap. No page has been rendered when it is returned.
	ErrPageLimitExceeded = errors.New("document exceeds page limit")

	// ErrUnrecognizedFormat is returned for sources that are not PDF
	// documents or that the rasterizer cannot open.
	ErrUnrecognizedFormat = raster.ErrUnrecognizedFormat
)

// Pipeline stages reported in PageError.
const (
	StageRender     = "render"
	StagePreprocess = "preprocess"
	StageRecognize  = "recognize"
)

// PageError reports the page and stage at which extraction failed. Err is the
// collaborator's error, unchanged.
type PageError struct {
	Page  int
	Stage string
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %s failed: %v", e.Page, e.Stage, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
