// Package imaging shrinks uploaded pictures before they go to storage.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	MaxWidth  = 800
	MaxHeight = 600

	// FirstPassQuality is the JPEG quality of the initial encode
	FirstPassQuality = 90
	minQuality       = 10
)

// Result is a resized JPEG with the parameters that produced it
type Result struct {
	Data    []byte
	Width   int
	Height  int
	Quality int
	// Reduced is set when a second, lower quality pass was made
	Reduced       bool
	FirstPassSize int
}

// Resize decodes data (JPEG, PNG or GIF), bounds it to 800x600 and encodes a
// JPEG at quality 90. When that is still over maxKB it is re-encoded once at
// max(0.1, 0.9*maxKB/size). The second pass may still exceed maxKB.
func Resize(data []byte, maxKB int) (*Result, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	width, height := TargetSize(b.Dx(), b.Dy())

	img := src
	if width != b.Dx() || height != b.Dy() {
		img = resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
	}
	img = flatten(img)

	out, err := encode(img, FirstPassQuality)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Data:          out,
		Width:         width,
		Height:        height,
		Quality:       FirstPassQuality,
		FirstPassSize: len(out),
	}

	maxBytes := maxKB * 1024
	if len(out) <= maxBytes {
		return res, nil
	}

	quality := ReducedQuality(maxBytes, len(out))
	out, err = encode(img, quality)
	if err != nil {
		return nil, err
	}
	res.Data = out
	res.Quality = quality
	res.Reduced = true
	return res, nil
}

// TargetSize scales landscape images by width and the rest by height,
// keeping the aspect ratio.
func TargetSize(width, height int) (int, int) {
	if width > height {
		if width > MaxWidth {
			return MaxWidth, max(1, int(math.Round(float64(height)*MaxWidth/float64(width))))
		}
		return width, height
	}
	if height > MaxHeight {
		return max(1, int(math.Round(float64(width)*MaxHeight/float64(height)))), MaxHeight
	}
	return width, height
}

// ReducedQuality returns the JPEG quality (10..100) of the second pass
func ReducedQuality(maxBytes, size int) int {
	q := math.Max(0.1, 0.9*float64(maxBytes)/float64(size))
	quality := int(math.Round(q * 100))
	if quality < minQuality {
		quality = minQuality
	}
	if quality > 100 {
		quality = 100
	}
	return quality
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// flatten paints transparent images onto white, as JPEG has no alpha
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
