package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// MimePNG is the media type of every image this package produces.
const MimePNG = "image/png"

// EncodedImage is a PNG ready to embed in a JSON response.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Decode parses encoded image bytes in any format the imaging package reads.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64PNG decodes a rendered page, optionally resizes it by scale and
// returns it base64 encoded. A scale of 1 or less than or equal to zero keeps
// the original bytes.
func Base64PNG(data []byte, scale float64) (*EncodedImage, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if scale != 1.0 && scale > 0 {
		w := int(float64(img.Bounds().Dx()) * scale)
		h := int(float64(img.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("scale %v shrinks image to nothing", scale)
		}
		img = imaging.Resize(img, w, h, imaging.Lanczos)
		if data, err = EncodePNG(img); err != nil {
			return nil, err
		}
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    MimePNG,
	}, nil
}

// DataURL returns PNG bytes as a data: URL for vision model requests.
func DataURL(png []byte) string {
	return "data:" + MimePNG + ";base64," + base64.StdEncoding.EncodeToString(png)
}
