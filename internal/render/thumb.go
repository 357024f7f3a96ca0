package render

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// Thumbnail scales an image down so its longest edge is at most maxSize.
// Images already within bounds are returned unchanged.
func Thumbnail(src image.Image, maxSize int) (image.Image, error) {
	if src == nil {
		return nil, errors.New("source image is required")
	}
	if maxSize < 1 {
		return nil, errors.New("max size must be positive")
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, errors.New("invalid image dimensions")
	}

	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxSize {
		return src, nil
	}

	scale := float64(maxSize) / float64(longest)
	newW := int(float64(width) * scale)
	newH := int(float64(height) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	return dst, nil
}

// EncodeImage writes an image in the requested format.
func EncodeImage(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch format {
	case "png", "":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		q := jpegQuality
		if q < 1 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}
