package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 85

// DefaultMaxImagePixels caps width*height of an uploaded image. The header is
// checked before any pixel data is decoded.
const DefaultMaxImagePixels = 40_000_000

type variantSize struct {
	name  string
	width int
}

var variantSizes = []variantSize{
	{name: "medium", width: 600},
	{name: "thumb", width: 150},
}

// imageDimensions reads only the image header.
func imageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// variantContentType keeps lossless sources lossless; photos become JPEG.
func variantContentType(contentType string) string {
	switch contentType {
	case "image/png", "image/gif":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

func variantKey(base string, width int, contentType string) string {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	return fmt.Sprintf("%s_%dw%s", base, width, ext)
}

// resize scales img down to maxWidth keeping the aspect ratio.
func resize(img image.Image, maxWidth int, contentType string) ([]byte, int, int, string, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxWidth {
		return nil, 0, 0, "", fmt.Errorf("image already %dpx wide", width)
	}

	newWidth := maxWidth
	newHeight := int(float64(height) * float64(maxWidth) / float64(width))
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	vct := variantContentType(contentType)
	var buf bytes.Buffer
	var err error
	if vct == "image/png" {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, 0, 0, "", err
	}
	return buf.Bytes(), newWidth, newHeight, vct, nil
}
