package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/mhbvr/shutter"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Normalize decodes a JPEG, PNG or WebP frame and re-encodes it as JPEG at
// quality, downscaling it to maxWidth if it is wider.
func Normalize(data []byte, maxWidth, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	if w := img.Bounds().Dx(); maxWidth > 0 && w > maxWidth {
		img = resize(img, float64(maxWidth)/float64(w))
	}
	return encode(img, quality)
}

// Scale shrinks a JPEG by factor, which must be in (0, 1].
func Scale(data []byte, factor float64, quality int) ([]byte, error) {
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("scale factor %v out of range (0, 1]", factor)
	}
	if factor == 1 {
		return data, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return encode(resize(img, factor), quality)
}

// resize scales img by factor using bilinear interpolation.
func resize(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	w := max(1, int(float64(bounds.Dx())*factor))
	h := max(1, int(float64(bounds.Dy())*factor))

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
	return scaled
}

func encode(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > shutter.MaxQuality {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
