// Package imaging handles rendered page images between the rasterizer and the
// recognizer.
//
// It provides three things:
//   - PageCache, an in-memory store of rendered PNG pages keyed by path, page
//     index and scale
//   - Preprocess, the optional grayscale, contrast and threshold pass with
//     blank-page detection
//   - PNG encoding helpers for JSON responses and vision model requests
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward, matching the bounding boxes
// produced by the recognizer.
//
// # Thread Safety
//
// PageCache is safe for concurrent use. The other functions are stateless
// and never modify their input images.
//
// # Blank Pages
//
// A page is blank when the fraction of sampled pixels darker than mid-gray
// in CIE Lab lightness is at or below the configured coverage. Blank
// detection always runs on the page as rendered, before any other
// adjustment.
package imaging
