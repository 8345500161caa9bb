// Package linearize turns the positioned tokens of a page into plain text that
// approximates reading order.
//
// # Algorithm
//
// Lines makes a single forward pass over a page's tokens in emission order.
// The first token of a line fixes that line's vertical band [top, bottom]; a
// later token belongs to the line iff its vertical midpoint lies inside that
// band. The band is never widened, so tolerance to baseline jitter is bounded
// by the first token's own height. Tokens without a box always join the open
// line.
//
// Within a line, tokens are joined with a single space. An empty token is
// skipped when the line so far ends with a hyphen or a space, which absorbs the
// empty fragments recognizers emit around hyphenated breaks and gap markers.
// No punctuation-aware spacing is attempted.
//
// Page joins a page's lines with newlines; Join and Document separate pages by
// exactly one blank line.
//
// # Precondition
//
// The recognizer must emit tokens row by row, top to bottom, left to right
// within a row. No sort is performed here. Tesseract's word iterator satisfies
// this for single-column pages.
package linearize
