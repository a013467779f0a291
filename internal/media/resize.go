// Package media holds the input-image sizing helpers used before job
// submission: aspect-preserving fits into engine-friendly boxes (dimensions
// divisible by 16) and the actual pixel resize.
package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Box is a target pixel size.
type Box struct {
	Width  int
	Height int
}

// FitBox shrinks (w, h) to fit within maxDim on the longest side while
// preserving aspect ratio, then rounds both sides down to a multiple of 16.
// Images already inside the box are still rounded.
func FitBox(width, height, maxDim int) Box {
	if width <= 0 || height <= 0 || maxDim <= 0 {
		return Box{}
	}
	ratio := float64(maxDim) / float64(width)
	if r := float64(maxDim) / float64(height); r < ratio {
		ratio = r
	}
	if ratio > 1 {
		ratio = 1
	}
	w := int(float64(width) * ratio)
	h := int(float64(height) * ratio)
	return Box{Width: w - w%16, Height: h - h%16}
}

// LipsyncBox picks the lip-sync target resolution from the source aspect
// ratio: clearly portrait sources render at 480x832, clearly landscape at
// 832x480, anything near square at 512x512.
func LipsyncBox(width, height int) Box {
	if width <= 0 || height <= 0 {
		return Box{Width: 512, Height: 512}
	}
	aspect := float64(width) / float64(height)
	switch {
	case aspect < 0.8:
		return Box{Width: 480, Height: 832}
	case aspect > 1.2:
		return Box{Width: 832, Height: 480}
	default:
		return Box{Width: 512, Height: 512}
	}
}

// Dimensions reads the pixel size of an image file without decoding pixels.
func Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// ResizeToFit scales the image at path into FitBox(maxDim) and writes the
// result next to the source as <path>_resized.png, returning the new path.
// Already-fitting images are still re-encoded so the engine sees 16-aligned
// dimensions.
func ResizeToFit(path string, maxDim int) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	src, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	box := FitBox(bounds.Dx(), bounds.Dy(), maxDim)
	if box.Width <= 0 || box.Height <= 0 {
		return "", fmt.Errorf("image %dx%d too small to fit a 16-aligned box", bounds.Dx(), bounds.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, box.Width, box.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	resizedPath := path + "_resized.png"
	out, err := os.Create(resizedPath)
	if err != nil {
		return "", fmt.Errorf("create resized image: %w", err)
	}
	if err := png.Encode(out, dst); err != nil {
		out.Close()
		_ = os.Remove(resizedPath)
		return "", fmt.Errorf("encode resized image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close resized image: %w", err)
	}
	return resizedPath, nil
}
