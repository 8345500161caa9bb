// Package ocr recognizes word tokens with bounding boxes on page images.
//
// The Recognizer interface is free of cgo so callers and their tests build
// everywhere. The Tesseract implementation wraps gosseract/v2 and is only
// compiled when cgo is enabled; without cgo NewTesseract returns
// ErrOCRNotEnabled.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// WithTessdataPrefix points the engine at a non-default tessdata directory.
//
// # Output
//
// Recognize returns one document.Word per Tesseract word box in emission
// order. Coordinates are pixels in the input image. Confidence is on
// Tesseract's 0-100 scale and no filtering is applied here; see
// document.NewPage.
//
// # Concurrency
//
// A Tesseract value keeps a pool of engine clients so Recognize may be called
// from several goroutines at once.
package ocr
