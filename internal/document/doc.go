// Package document defines the data model shared by every stage of the
// page-to-text pipeline: recognizer words, positioned tokens, pages and
// documents.
//
// # Coordinate System
//
// Boxes are in pixel space of the rendered page image with the origin at the
// top-left corner. Y increases downward, so a box's top edge is Y and its
// bottom edge is Y+H.
//
// # Ordering
//
// A Page holds its tokens in the order the recognizer emitted them. That order
// is NOT reading order; the linearize package derives line grouping from the
// vertical position of each token and assumes only that tokens within one row
// arrive left to right.
//
// # Filtering
//
// NewPage is the confidence filter between the recognizer and the line
// segmenter. Words whose confidence is not strictly greater than the threshold
// (0 by default, Tesseract's "no detection" sentinel is -1) are dropped
// entirely rather than kept as placeholders.
package document
