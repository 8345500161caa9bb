package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// inkLightness is the CIE L* value below which a pixel counts as ink.
const inkLightness = 0.5

// coverageStride samples every n-th pixel in each direction when measuring
// ink coverage.
const coverageStride = 2

// PreprocessOptions selects the transforms applied to a rendered page before
// recognition. The zero value disables everything.
type PreprocessOptions struct {
	// Grayscale drops color information.
	Grayscale bool

	// Contrast changes contrast by a factor in [-1, 1]. Zero leaves it unchanged.
	Contrast float64

	// Threshold binarizes the page at this luminance level. Zero disables it.
	Threshold uint8

	// SkipBlank marks pages whose ink coverage is at or below BlankCoverage.
	SkipBlank bool

	// BlankCoverage is the ink fraction in [0, 1] that still counts as blank.
	BlankCoverage float64
}

// transforms reports whether any pixel transform is enabled.
func (o PreprocessOptions) transforms() bool {
	return o.Grayscale || o.Contrast != 0 || o.Threshold != 0
}

// Enabled reports whether Preprocess does anything beyond returning its input.
func (o PreprocessOptions) Enabled() bool {
	return o.transforms() || o.SkipBlank
}

// PreprocessResult is the outcome of preprocessing one page image.
type PreprocessResult struct {
	// Image is the encoded PNG to hand to the recognizer.
	Image []byte

	// Blank is set when SkipBlank is on and the page has no meaningful ink.
	Blank bool

	// Coverage is the measured ink fraction, or -1 when not measured.
	Coverage float64
}

// Preprocess applies opts to an encoded page image.
//
// Parameters:
//   - data: The encoded page image, normally a PNG from the rasterizer.
//   - opts: Transforms to apply. With nothing enabled data is returned as is
//     and never decoded.
//
// Returns:
//   - *PreprocessResult: The processed PNG plus the blank-page verdict.
//   - error: Non-nil if the image cannot be decoded or re-encoded.
//
// # Order
//
// Blank detection runs on the original image. Transforms then run in the
// order grayscale, contrast, threshold.
func Preprocess(data []byte, opts PreprocessOptions) (*PreprocessResult, error) {
	res := &PreprocessResult{Image: data, Coverage: -1}
	if !opts.Enabled() {
		return res, nil
	}
	if opts.Contrast < -1 || opts.Contrast > 1 {
		return nil, fmt.Errorf("contrast %v outside [-1, 1]", opts.Contrast)
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if opts.SkipBlank {
		res.Coverage = InkCoverage(img)
		if res.Coverage <= opts.BlankCoverage {
			res.Blank = true
			return res, nil
		}
	}
	if !opts.transforms() {
		return res, nil
	}

	var out image.Image = img
	if opts.Grayscale {
		out = imaging.Grayscale(out)
	}
	if opts.Contrast != 0 {
		out = adjust.Contrast(out, opts.Contrast)
	}
	if opts.Threshold != 0 {
		out = segment.Threshold(out, opts.Threshold)
	}

	if res.Image, err = EncodePNG(out); err != nil {
		return nil, err
	}
	return res, nil
}

// InkCoverage returns the fraction of sampled pixels dark enough to be ink,
// judged by CIE L* lightness. Fully transparent pixels count as background.
func InkCoverage(img image.Image) float64 {
	b := img.Bounds()
	var ink, total int
	for y := b.Min.Y; y < b.Max.Y; y += coverageStride {
		for x := b.Min.X; x < b.Max.X; x += coverageStride {
			total++
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			if l, _, _ := c.Lab(); l < inkLightness {
				ink++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ink) / float64(total)
}
